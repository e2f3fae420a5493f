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

package config

import (
	"os"
	"path/filepath"
)

// xdgDir resolves $envKey/quill, or ~/<fallback...>/quill when the variable
// is unset. The home lookup failing falls back to the temp directory.
func xdgDir(envKey string, fallback ...string) string {
	if base := os.Getenv(envKey); base != "" {
		return filepath.Join(base, "quill")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "quill")
	}
	return filepath.Join(append(append([]string{home}, fallback...), "quill")...)
}

// ConfigDir is $XDG_CONFIG_HOME/quill, defaulting to ~/.config/quill on
// every platform. It is not created; only commands that write there do.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// ConfigPath is the default config file location.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefinitionsDir is the default directory of definition files.
func DefinitionsDir() string {
	return filepath.Join(ConfigDir(), "definitions")
}

// DataDir is $XDG_DATA_HOME/quill, defaulting to ~/.local/share/quill.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", ".local", "share")
}
