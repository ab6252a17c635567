package metadata

import "hash/fnv"

// hashOuter is H1, a djb2 variant, used to select the outer bucket. djb2
// starts from a magic seed and multiplies by 33 for each byte; the variant
// here XORs instead of adds, as is common practice for djb2a.
func hashOuter(name string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(name); i++ {
		h = ((h << 5) + h) ^ uint32(name[i]) // h*33 ^ c
	}
	return h
}

// hashInner is H2, an FNV-1a variant, used to select the inner bucket within
// an outer slot. Using a different hash family than H1 spreads collisions
// that happen to survive the outer modulo.
func hashInner(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
