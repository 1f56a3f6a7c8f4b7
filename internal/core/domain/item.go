package domain

// Item is a value travelling between pipeline stages.
// The zero Item is never produced by a stage; Done marks the end of a stream.
type Item struct {
	Path string
	done bool
}

// Done is the end-of-stream sentinel. It is distinct from every path item.
var Done = Item{done: true}

// NewItem wraps a path as a pipeline item.
func NewItem(path string) Item {
	return Item{Path: path}
}

// IsDone reports whether the item is the end-of-stream sentinel.
func (i Item) IsDone() bool {
	return i.done
}
