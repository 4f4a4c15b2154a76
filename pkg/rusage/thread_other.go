//go:build !linux

package rusage

const threadScoped = false

func sampleThread() (Usage, error) {
	return sample()
}
