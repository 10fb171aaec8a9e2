package services

import (
	"errors"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/marcvidal/linkshortener/internal/geo"
	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/uaparse"
)

// errStoreDown simulates a store outage in the fakes below.
var errStoreDown = errors.New("store down")

// fakeLinkRepo is an in-memory LinkRepository. It hands out copies of its
// links, like a real database would, and performs the counter increment under
// its own lock so concurrent increments are never lost.
type fakeLinkRepo struct {
	mu     sync.Mutex
	links  map[uint]*models.Link
	nextID uint
	down   bool // when true every call fails with errStoreDown
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[uint]*models.Link)}
}

func (r *fakeLinkRepo) CreateLink(link *models.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return errStoreDown
	}
	r.nextID++
	link.ID = r.nextID
	stored := *link
	r.links[link.ID] = &stored
	return nil
}

func (r *fakeLinkRepo) UpdateLink(link *models.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return errStoreDown
	}
	if _, ok := r.links[link.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *link
	r.links[link.ID] = &stored
	return nil
}

func (r *fakeLinkRepo) DeleteLink(linkID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return errStoreDown
	}
	delete(r.links, linkID)
	return nil
}

func (r *fakeLinkRepo) GetLinkByID(linkID uint) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errStoreDown
	}
	link, ok := r.links[linkID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *link
	return &copied, nil
}

func (r *fakeLinkRepo) GetLinkByShortCode(shortCode string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errStoreDown
	}
	for _, link := range r.links {
		if link.ShortCode == shortCode {
			copied := *link
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) GetLinkByAlias(alias string) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errStoreDown
	}
	for _, link := range r.links {
		if link.CustomAlias != nil && *link.CustomAlias == alias {
			copied := *link
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) ExistsByShortCode(shortCode string) (bool, error) {
	_, err := r.GetLinkByShortCode(shortCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *fakeLinkRepo) ExistsByAlias(alias string) (bool, error) {
	_, err := r.GetLinkByAlias(alias)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *fakeLinkRepo) IncrementClickCount(linkID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, errStoreDown
	}
	link, ok := r.links[linkID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	link.ClickCount++
	return link.ClickCount, nil
}

func (r *fakeLinkRepo) GetAllLinks() ([]models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errStoreDown
	}
	links := make([]models.Link, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, *link)
	}
	return links, nil
}

// seed inserts a link and returns the stored copy.
func (r *fakeLinkRepo) seed(link models.Link) *models.Link {
	if err := r.CreateLink(&link); err != nil {
		panic(err)
	}
	return &link
}

// fakeClickRepo is an in-memory ClickRepository.
type fakeClickRepo struct {
	mu     sync.Mutex
	clicks []models.Click
	nextID uint
	down   bool
}

func newFakeClickRepo() *fakeClickRepo {
	return &fakeClickRepo{}
}

func (r *fakeClickRepo) CreateClick(click *models.Click) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return errStoreDown
	}
	r.nextID++
	click.ID = r.nextID
	r.clicks = append(r.clicks, *click)
	return nil
}

func (r *fakeClickRepo) FindClicksByLinkID(linkID uint) ([]models.Click, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errStoreDown
	}
	var found []models.Click
	for _, click := range r.clicks {
		if click.LinkID == linkID {
			found = append(found, click)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ClickedAt.After(found[j].ClickedAt)
	})
	return found, nil
}

func (r *fakeClickRepo) CountClicksByLinkID(linkID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, errStoreDown
	}
	var count int64
	for _, click := range r.clicks {
		if click.LinkID == linkID {
			count++
		}
	}
	return count, nil
}

// stubLocator always returns the same location.
type stubLocator struct {
	location geo.Location
}

func (s *stubLocator) Locate(string) (*geo.Location, error) {
	loc := s.location
	return &loc, nil
}

// stubParser always returns the same client info.
type stubParser struct {
	info uaparse.ClientInfo
}

func (s *stubParser) Parse(string) *uaparse.ClientInfo {
	info := s.info
	return &info
}

func strptr(s string) *string { return &s }
