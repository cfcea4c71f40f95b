package mediagroup

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Item is one photo of a Telegram album.
type Item struct {
	ChatID       int64
	UserID       int64
	Username     string
	MessageID    int
	MediaGroupID string
	Caption      string
	FileID       string
	MimeType     string
}

type Photo struct {
	MessageID int
	FileID    string
	MimeType  string
}

// Group is a flushed album with photos in send order.
type Group struct {
	ChatID    int64
	UserID    int64
	Username  string
	MessageID int
	Caption   string
	Photos    []Photo
}

// Primary is the first photo of the album: the structure to keep.
func (g Group) Primary() (Photo, bool) {
	if len(g.Photos) == 0 {
		return Photo{}, false
	}
	return g.Photos[0], true
}

// Reference is the second photo: the style to borrow.
func (g Group) Reference() (Photo, bool) {
	if len(g.Photos) < 2 {
		return Photo{}, false
	}
	return g.Photos[1], true
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Group)
	groups   map[string]*pendingGroup
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)
	photo := Photo{MessageID: item.MessageID, FileID: item.FileID, MimeType: item.MimeType}

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:    item.ChatID,
				UserID:    item.UserID,
				Username:  item.Username,
				MessageID: item.MessageID,
				Caption:   item.Caption,
				Photos:    []Photo{photo},
			},
		}
		a.groups[key] = pg
	} else {
		pg.group.Photos = append(pg.group.Photos, photo)
		if item.Caption != "" {
			pg.group.Caption = item.Caption
		}
		if item.MessageID < pg.group.MessageID {
			pg.group.MessageID = item.MessageID
		}
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

// Pending reports the number of albums still waiting for their debounce.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// FlushAll delivers every pending album immediately. Used on shutdown.
func (a *Aggregator) FlushAll() {
	a.mu.Lock()
	keys := make([]string, 0, len(a.groups))
	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		keys = append(keys, key)
	}
	a.mu.Unlock()

	for _, key := range keys {
		a.flush(key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	// Updates can arrive out of order; message ids follow send order.
	sort.SliceStable(group.Photos, func(i, j int) bool {
		return group.Photos[i].MessageID < group.Photos[j].MessageID
	})

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
