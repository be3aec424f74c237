package managers

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

func zapID(id int) zap.Field { return zap.Int("public_id", id) }

func zapName(name string) zap.Field { return zap.String("name", name) }

func zapTypeID(id int) zap.Field { return zap.Int("type_id", id) }

// bumpVersion increments the patch component of a semantic version string.
// Unparseable versions restart at 1.0.1.
func bumpVersion(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return "1.0.1"
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return "1.0.1"
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
}

// bumpMinor increments the minor component and resets the patch.
func bumpMinor(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return "1.1.0"
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return "1.1.0"
	}
	return fmt.Sprintf("%s.%d.0", parts[0], minor+1)
}
