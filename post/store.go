package post

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	fileExt          = ".post"
	publishedDirName = "published"
	draftsDirName    = "drafts"
)

// Store keeps one file per post under root/published and root/drafts.
// A post's file lives in the directory matching its status and never in both.
type Store struct {
	publishedDir string
	draftsDir    string
	fs           FileSystem
	log          *zap.Logger
	now          func() time.Time
	seeds        []Input
	seedLoader   func() ([]Input, error)

	readyOnce sync.Once
	readyErr  error

	// createMu serializes id allocation; locks serializes read-modify-write
	// per id. Without them concurrent claps on one post lose updates.
	createMu sync.Mutex
	locks    keyedMutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFileSystem replaces the local disk, mostly for tests.
func WithFileSystem(fsys FileSystem) StoreOption {
	return func(s *Store) { s.fs = fsys }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithSeedPosts replaces the embedded sample posts written on first run.
func WithSeedPosts(seeds []Input) StoreOption {
	return func(s *Store) {
		s.seeds = seeds
		s.seedLoader = nil
	}
}

// WithoutSeed disables first-run seeding.
func WithoutSeed() StoreOption {
	return func(s *Store) {
		s.seeds = nil
		s.seedLoader = nil
	}
}

// NewStore creates a store rooted at root. Nothing touches the disk until
// the first call to Ready (which every operation makes).
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{
		publishedDir: filepath.Join(root, publishedDirName),
		draftsDir:    filepath.Join(root, draftsDirName),
		fs:           OSFileSystem{},
		log:          zap.NewNop(),
		now:          time.Now,
		seedLoader:   SamplePosts,
		locks:        keyedMutex{locks: make(map[string]*keyedLock)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready creates both directories and seeds sample posts when neither holds
// any. It runs once; every caller, concurrent or later, gets the same result.
func (s *Store) Ready() error {
	s.readyOnce.Do(func() {
		s.readyErr = s.init()
		if s.readyErr != nil {
			s.log.Error("post store init failed", zap.Error(s.readyErr))
		}
	})
	return s.readyErr
}

func (s *Store) init() error {
	for _, dir := range []string{s.publishedDir, s.draftsDir} {
		if err := s.fs.MkdirAll(dir); err != nil {
			return &StorageError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	seeds := s.seeds
	if seeds == nil && s.seedLoader != nil {
		loaded, err := s.seedLoader()
		if err != nil {
			return fmt.Errorf("load sample posts: %w", err)
		}
		seeds = loaded
	}
	if len(seeds) == 0 {
		return nil
	}

	published, err := s.listIDs(s.publishedDir)
	if err != nil {
		return err
	}
	drafts, err := s.listIDs(s.draftsDir)
	if err != nil {
		return err
	}
	if len(published) > 0 || len(drafts) > 0 {
		return nil
	}

	for _, in := range seeds {
		if _, err := s.create(in); err != nil {
			return fmt.Errorf("seed %q: %w", in.Title, err)
		}
	}
	s.log.Info("seeded sample posts", zap.Int("count", len(seeds)))
	return nil
}

// ListAll reads every post in both directories concurrently, published first.
func (s *Store) ListAll() ([]*Post, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	return s.listAll()
}

func (s *Store) listAll() ([]*Post, error) {
	type entry struct {
		id  string
		dir Status
	}
	var entries []entry
	for _, d := range []Status{StatusPublished, StatusDraft} {
		ids, err := s.listIDs(s.dirFor(d))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			entries = append(entries, entry{id: id, dir: d})
		}
	}

	posts := make([]*Post, len(entries))
	errs := make([]error, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posts[i], errs[i] = s.read(e.id, e.dir)
		}()
	}
	wg.Wait()

	out := make([]*Post, 0, len(posts))
	for i, p := range posts {
		if errs[i] != nil {
			// Deleted between listing and reading.
			if errs[i] == ErrNotFound {
				continue
			}
			return nil, errs[i]
		}
		out = append(out, p)
	}
	return out, nil
}

// Get returns the post with id, looking in published before drafts.
func (s *Store) Get(id string) (*Post, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	p, _, err := s.load(id)
	return p, err
}

// Create allocates a unique id for in and writes it to the directory its
// status implies.
func (s *Store) Create(in Input) (*Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.Ready(); err != nil {
		return nil, err
	}
	return s.create(in)
}

func (s *Store) create(in Input) (*Post, error) {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	base := ToSlug(in.Slug)
	if base == "" {
		base = ToSlug(in.Title)
	}
	if base == "" {
		base = fmt.Sprintf("post-%d", s.now().UnixMilli())
	}
	slugs, err := s.slugsInUse("")
	if err != nil {
		return nil, err
	}
	id, err := s.uniqueID(base, slugs)
	if err != nil {
		return nil, err
	}

	p := &Post{
		ID:           id,
		Slug:         id,
		Title:        in.Title,
		Subtitle:     in.Subtitle,
		Content:      in.Content,
		CoverImage:   in.CoverImage,
		Tags:         in.Tags,
		Author:       NormalizeAuthor(in.Author),
		Status:       ParseStatus(in.Status),
		PublishedAt:  cloneTime(in.PublishedAt),
		ScheduledFor: cloneTime(in.ScheduledFor),
		Stats:        in.Stats,
	}
	if in.SEO != nil {
		p.SEO = *in.SEO
	}
	return s.persist(p, nil, "")
}

// Mutator edits a deep copy of the current post in place. Returning false
// aborts the update and leaves the stored post untouched.
type Mutator func(p *Post) (changed bool, err error)

// UpdateWith loads id, applies fn and persists the result. When the status
// changes directory the new file is written before the old one is removed.
func (s *Store) UpdateWith(id string, fn Mutator) (*Post, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	cur, dir, err := s.load(id)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	changed, err := fn(next)
	if err != nil {
		return nil, err
	}
	if !changed {
		return cur, nil
	}
	next.ID = cur.ID
	return s.persist(next, cur, dir)
}

// Patch applies a partial update. A new slug must not already be the slug or
// id of another post.
func (s *Store) Patch(id string, patch Patch) (*Post, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.Slug == nil || ToSlug(*patch.Slug) == "" {
		return s.UpdateWith(id, patch.Apply)
	}
	if err := s.Ready(); err != nil {
		return nil, err
	}
	// Slug changes are serialized with id allocation so two posts cannot
	// claim the same slug at once.
	s.createMu.Lock()
	defer s.createMu.Unlock()
	if err := s.slugAvailable(id, ToSlug(*patch.Slug)); err != nil {
		return nil, err
	}
	return s.UpdateWith(id, patch.Apply)
}

func (s *Store) slugAvailable(id, slug string) error {
	slugs, err := s.slugsInUse(id)
	if err != nil {
		return err
	}
	if _, taken := slugs[slug]; taken {
		return &ValidationError{Field: "slug", Message: fmt.Sprintf("slug %q is already used by another post", slug)}
	}
	return nil
}

// slugsInUse returns every slug and id held by posts other than except.
func (s *Store) slugsInUse(except string) (map[string]struct{}, error) {
	posts, err := s.listAll()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, 2*len(posts))
	for _, p := range posts {
		if p.ID == except {
			continue
		}
		out[p.ID] = struct{}{}
		out[p.Slug] = struct{}{}
	}
	return out, nil
}

// Remove deletes id from whichever directory holds it. Absence is reported
// as found=false, not as an error.
func (s *Store) Remove(id string) (bool, error) {
	if err := s.Ready(); err != nil {
		return false, err
	}
	if !validID(id) {
		return false, nil
	}
	unlock := s.locks.lock(id)
	defer unlock()

	found := false
	for _, d := range []Status{StatusPublished, StatusDraft} {
		path := s.pathFor(id, d)
		err := s.fs.Remove(path)
		switch {
		case err == nil:
			found = true
		case isNotExist(err):
		default:
			return found, &StorageError{Op: "remove", Path: path, Err: err}
		}
	}
	return found, nil
}

// Repair resolves ids left in both directories by an interrupted move. The
// copy whose own Status header matches its directory wins; otherwise the
// most recently updated copy does. It returns the ids it fixed.
func (s *Store) Repair() ([]string, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	published, err := s.listIDs(s.publishedDir)
	if err != nil {
		return nil, err
	}
	drafts, err := s.listIDs(s.draftsDir)
	if err != nil {
		return nil, err
	}
	inDrafts := make(map[string]struct{}, len(drafts))
	for _, id := range drafts {
		inDrafts[id] = struct{}{}
	}

	var fixed []string
	for _, id := range published {
		if _, dup := inDrafts[id]; !dup {
			continue
		}
		if err := s.repairOne(id); err != nil {
			return fixed, err
		}
		fixed = append(fixed, id)
	}
	return fixed, nil
}

func (s *Store) repairOne(id string) error {
	unlock := s.locks.lock(id)
	defer unlock()

	pub, err := s.read(id, StatusPublished)
	if err != nil {
		return err
	}
	draft, err := s.read(id, StatusDraft)
	if err != nil {
		return err
	}
	pubFits := pub.Status == StatusPublished
	draftFits := draft.Status != StatusPublished

	loser := StatusDraft
	switch {
	case pubFits && !draftFits:
	case draftFits && !pubFits:
		loser = StatusPublished
	case draft.UpdatedAt.After(pub.UpdatedAt):
		loser = StatusPublished
	}
	path := s.pathFor(id, loser)
	if err := s.fs.Remove(path); err != nil && !isNotExist(err) {
		return &StorageError{Op: "remove", Path: path, Err: err}
	}
	s.log.Warn("resolved duplicate post", zap.String("id", id), zap.String("removed", path))
	return nil
}

// persist normalizes rec and writes it to the directory its status implies,
// moving it out of prevDir when that differs.
func (s *Store) persist(rec, prev *Post, prevDir Status) (*Post, error) {
	s.normalize(rec, prev, s.now().UTC())

	target := s.pathFor(rec.ID, dirStatus(rec.Status))
	from := ""
	if prev != nil {
		from = s.pathFor(prev.ID, prevDir)
	}
	if err := s.relocate(from, target, Marshal(rec)); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) normalize(rec, prev *Post, now time.Time) {
	rec.Status = ParseStatus(string(rec.Status))
	rec.Title = strings.TrimSpace(rec.Title)
	rec.Subtitle = strings.TrimSpace(rec.Subtitle)
	rec.Content = strings.TrimRight(normalizeNewlines(rec.Content), "\n")
	rec.CoverImage = nonEmpty(rec.CoverImage)
	rec.Tags = NormalizeTags(rec.Tags)
	rec.Author = NormalizeAuthor(&AuthorInput{
		Name:   rec.Author.Name,
		Handle: rec.Author.Handle,
		Avatar: rec.Author.Avatar,
		Bio:    rec.Author.Bio,
	})

	rec.Slug = ToSlug(rec.Slug)
	if rec.Slug == "" {
		rec.Slug = rec.ID
	}

	rec.Stats.Views = max(rec.Stats.Views, 0)
	rec.Stats.Claps = max(rec.Stats.Claps, 0)
	rec.Stats.Bookmarks = max(rec.Stats.Bookmarks, 0)
	rec.Stats.Comments = max(rec.Stats.Comments, 0)

	switch rec.Status {
	case StatusPublished:
		if rec.PublishedAt == nil {
			t := now
			rec.PublishedAt = &t
		}
		rec.ScheduledFor = nil
	case StatusScheduled:
	default:
		rec.PublishedAt = nil
		rec.ScheduledFor = nil
	}

	if prev != nil {
		rec.CreatedAt = prev.CreatedAt
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	derive(rec)
}

// relocate writes data to newPath and then removes oldPath. Each write is
// atomic on its own; the pair is not, so a crash in between leaves a
// duplicate for Repair.
func (s *Store) relocate(oldPath, newPath string, data []byte) error {
	if err := s.fs.WriteFile(newPath, data); err != nil {
		return &StorageError{Op: "write", Path: newPath, Err: err}
	}
	if oldPath == "" || oldPath == newPath {
		return nil
	}
	if err := s.fs.Remove(oldPath); err != nil && !isNotExist(err) {
		return &StorageError{Op: "remove", Path: oldPath, Err: err}
	}
	return nil
}

// load finds id and reports which directory it was read from.
func (s *Store) load(id string) (*Post, Status, error) {
	if !validID(id) {
		return nil, "", ErrNotFound
	}
	for _, d := range []Status{StatusPublished, StatusDraft} {
		p, err := s.read(id, d)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return p, d, nil
	}
	return nil, "", ErrNotFound
}

func (s *Store) read(id string, dir Status) (*Post, error) {
	path := s.pathFor(id, dir)
	data, err := s.fs.ReadFile(path)
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	meta, err := s.fs.Stat(path)
	if err != nil {
		meta = FileMeta{}
	}
	return Parse(data, Hint{ID: id, Dir: dir, Meta: meta, Now: s.now()}), nil
}

func (s *Store) listIDs(dir string) ([]string, error) {
	names, err := s.fs.ReadDir(dir)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Path: dir, Err: err}
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := strings.CutSuffix(name, fileExt); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) uniqueID(base string, slugs map[string]struct{}) (string, error) {
	candidate := base
	for n := 1; ; n++ {
		_, taken := slugs[candidate]
		if !taken {
			var err error
			if taken, err = s.exists(candidate); err != nil {
				return "", err
			}
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

func (s *Store) exists(id string) (bool, error) {
	for _, d := range []Status{StatusPublished, StatusDraft} {
		path := s.pathFor(id, d)
		_, err := s.fs.Stat(path)
		if err == nil {
			return true, nil
		}
		if !isNotExist(err) {
			return false, &StorageError{Op: "stat", Path: path, Err: err}
		}
	}
	return false, nil
}

func (s *Store) dirFor(d Status) string {
	if d == StatusPublished {
		return s.publishedDir
	}
	return s.draftsDir
}

func (s *Store) pathFor(id string, d Status) string {
	return filepath.Join(s.dirFor(d), id+fileExt)
}

// dirStatus maps a post status onto the directory it is stored in.
func dirStatus(st Status) Status {
	if st == StatusPublished {
		return StatusPublished
	}
	return StatusDraft
}

// validID rejects ids that would escape the content directories.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
