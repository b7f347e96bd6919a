//go:build windows

package tactile

func processGroup() int {
	return 0
}
