//go:build !race

package defects

func passwordHashCost() int {
	return 12
}
