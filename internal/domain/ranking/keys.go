package ranking

// Keys composes board cache keys.
type Keys struct {
	Prefix     string
	Overall    string
	Tiebreaker string
}

// Board returns the key of a real window, the tiebreaker board or the
// plain overall board.
func (k Keys) Board(codename string) string {
	return k.Prefix + codename
}

// Blended returns the key of the overall board with tiebreaker bonuses.
// It never equals the plain overall key.
func (k Keys) Blended() string {
	return k.Prefix + k.Overall + k.Tiebreaker
}

// IsPseudo reports whether codename names the overall or tiebreaker board.
func (k Keys) IsPseudo(codename string) bool {
	return codename == k.Overall || codename == k.Tiebreaker
}

// Reserved reports whether a real window named codename would be shadowed by
// a pseudo board or share a cache key with one.
func (k Keys) Reserved(codename string) bool {
	return k.IsPseudo(codename) || k.Board(codename) == k.Blended()
}
