package instapaper

// Item is a bookmark together with every folder it was seen in.
type Item struct {
	Bookmark
	Folders []Membership
}

// Aggregate deduplicates bookmarks across folders. The first occurrence is
// canonical; later ones only extend its folder list.
type Aggregate struct {
	order []int64
	items map[int64]*Item
}

// NewAggregate returns an empty Aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{items: make(map[int64]*Item)}
}

// Add records bookmarks seen in folder.
func (a *Aggregate) Add(folder Membership, bookmarks []Bookmark) {
	for _, b := range bookmarks {
		item, ok := a.items[b.ID]
		if !ok {
			item = &Item{Bookmark: b}
			a.items[b.ID] = item
			a.order = append(a.order, b.ID)
		}
		if !hasFolder(item.Folders, folder.ID) {
			item.Folders = append(item.Folders, folder)
		}
	}
}

// Len is the number of distinct bookmarks.
func (a *Aggregate) Len() int { return len(a.order) }

// Items returns the distinct items in first-seen order.
func (a *Aggregate) Items() []*Item {
	out := make([]*Item, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id])
	}
	return out
}

// Get returns the item for id.
func (a *Aggregate) Get(id int64) (*Item, bool) {
	item, ok := a.items[id]
	return item, ok
}

func hasFolder(folders []Membership, id string) bool {
	for _, f := range folders {
		if f.ID == id {
			return true
		}
	}
	return false
}
