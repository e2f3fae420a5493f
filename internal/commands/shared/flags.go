// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

var (
	verboseFlag bool
	quietFlag   bool
	jsonFlag    bool
	traceFlag   bool
	configFlag  string

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Flags groups pointers to the global flag values for registration on the
// root command.
type Flags struct {
	Verbose *bool
	Quiet   *bool
	JSON    *bool
	Trace   *bool
	Config  *string
}

// RegisterFlagPointers returns pointers to the global flag values.
func RegisterFlagPointers() Flags {
	return Flags{
		Verbose: &verboseFlag,
		Quiet:   &quietFlag,
		JSON:    &jsonFlag,
		Trace:   &traceFlag,
		Config:  &configFlag,
	}
}

// SetVersion sets build information, called from main.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

func GetVerbose() bool {
	return verboseFlag
}

func GetQuiet() bool {
	return quietFlag
}

func GetJSON() bool {
	return jsonFlag
}

func GetTrace() bool {
	return traceFlag
}

func GetConfigPath() string {
	return configFlag
}

func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// SetFlagsForTest overrides the global flags and returns a func restoring
// the previous values.
func SetFlagsForTest(configPath string, json bool) func() {
	prevConfig, prevJSON := configFlag, jsonFlag
	configFlag, jsonFlag = configPath, json
	return func() {
		configFlag, jsonFlag = prevConfig, prevJSON
	}
}
