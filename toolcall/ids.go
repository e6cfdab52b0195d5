package toolcall

import (
	"fmt"
	"hash/fnv"
)

// SynthesizeID derives a call id for backends that do not issue one. The id
// is stable for the same name, position and arguments, and is not globally
// unique.
func SynthesizeID(prefix, name string, index int, args string) string {
	h := fnv.New32a()
	h.Write([]byte(args))
	return fmt.Sprintf("%s_%s_%d_%08x", prefix, name, index, h.Sum32())
}
