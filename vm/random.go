package vm

import (
	"math/rand/v2"
	"time"
)

// seedStream is mixed into every PCG seed so that small story seeds still
// produce well-spread sequences.
const seedStream = 0x9e3779b97f4a7c15

// nextRandom returns the first non-negative 31-bit draw of a generator
// seeded with seed. The runtime stores only the seed and the previous draw,
// never a generator, so random behaviour survives snapshots.
func nextRandom(seed int) int {
	r := rand.New(rand.NewPCG(uint64(int64(seed)), seedStream))
	return int(r.Int32())
}

// randomSeed picks a story seed for sessions created without one.
func randomSeed() int {
	return int(time.Now().UnixNano()%100) + 1
}

// shuffleIndex returns the element a shuffle sequence shows on its
// seqCount-th visit. Each full pass through the elements is a fresh
// permutation, derived from the sequence container's path, the pass number
// and the story seed.
func shuffleIndex(path string, numElements, seqCount, storySeed int) int {
	loop := seqCount / numElements
	iteration := seqCount % numElements

	hash := 0
	for _, c := range path {
		hash += int(c)
	}
	r := rand.New(rand.NewPCG(uint64(int64(hash+loop+storySeed)), seedStream))

	unpicked := make([]int, numElements)
	for i := range unpicked {
		unpicked[i] = i
	}
	for i := 0; ; i++ {
		k := int(r.Int32()) % len(unpicked)
		chosen := unpicked[k]
		unpicked = append(unpicked[:k], unpicked[k+1:]...)
		if i == iteration {
			return chosen
		}
	}
}
