package syncer

import "github.com/RoaringBitmap/roaring"

// dirtySet tracks node ids whose local records are stale. Ids are interned
// to dense uint32s so the set itself is a roaring bitmap.
type dirtySet struct {
	bits   *roaring.Bitmap
	intID  map[string]uint32
	nodeID []string
}

func newDirtySet() *dirtySet {
	return &dirtySet{
		bits:  roaring.New(),
		intID: make(map[string]uint32),
	}
}

func (d *dirtySet) mark(ids ...string) {
	for _, id := range ids {
		x, ok := d.intID[id]
		if !ok {
			x = uint32(len(d.nodeID))
			d.intID[id] = x
			d.nodeID = append(d.nodeID, id)
		}
		d.bits.Add(x)
	}
}

func (d *dirtySet) empty() bool { return d.bits.IsEmpty() }

func (d *dirtySet) contains(id string) bool {
	x, ok := d.intID[id]
	return ok && d.bits.Contains(x)
}

// take returns the marked ids and clears the set.
func (d *dirtySet) take() []string {
	out := make([]string, 0, d.bits.GetCardinality())
	it := d.bits.Iterator()
	for it.HasNext() {
		out = append(out, d.nodeID[it.Next()])
	}
	d.bits.Clear()
	return out
}
