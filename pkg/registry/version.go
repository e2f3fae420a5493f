package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tombee/quill/pkg/model"
)

// bumpPatch increments the patch component of a major.minor.patch version.
// A malformed version restarts from the initial version before bumping.
func bumpPatch(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return bumpPatch(model.InitialVersion)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return bumpPatch(model.InitialVersion)
		}
		nums[i] = n
	}

	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]+1)
}
