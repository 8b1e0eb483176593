package preview

// Executor runs functions on the player's owner goroutine.
//
// Every mutation of player state happens on that goroutine. Tile completions
// arriving from compositor goroutines are handed to Post and applied when
// the executor runs them. Post must not block and must preserve the order of
// calls made from a single goroutine. sequence.Loop and sequence.Queue both
// satisfy Executor.
type Executor interface {
	Post(fn func())
}
