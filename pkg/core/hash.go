package core

import (
	"encoding/hex"
	"hash/fnv"
)

func Hash(value string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(value))
	return hash.Sum32()
}

func Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	return int(Hash(key) % uint32(numPartitions))
}

// ContentHash returns the hex encoded 128-bit FNV-1a digest of a serialized
// key. Distinct keys hashing to the same digest are not detected.
func ContentHash(data []byte) string {
	hash := fnv.New128a()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}
