package gen

// DeleteFromSliceUnordered removes element i without preserving order
func DeleteFromSliceUnordered[T any](slice []T, i int) []T {
	slice[i] = slice[len(slice)-1]
	return slice[:len(slice)-1]
}
