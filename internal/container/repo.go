package container

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loykin/launchr/internal/fault"
	"github.com/loykin/launchr/internal/notify"
)

var (
	// ErrExists is wrapped by Create when the record file is already there.
	ErrExists = errors.New("script container already exists")
	// ErrMissing is wrapped by Update when there is no record file to update.
	ErrMissing = errors.New("script container does not exist")
)

// Repo reads and writes the record file <dir>/<name>.xml. Every failure is
// shown through the notifier and logged before it is returned as a
// *fault.Error; callers only need to act on fault.IsFatal.
type Repo struct {
	dir      string
	name     string
	notifier notify.Notifier
	log      *slog.Logger
}

type Option func(*Repo)

// WithName overrides the record base name (default DefaultName).
func WithName(name string) Option {
	return func(r *Repo) {
		if name != "" {
			r.name = name
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRepo(dir string, n notify.Notifier, opts ...Option) *Repo {
	r := &Repo{dir: dir, name: DefaultName, notifier: n, log: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Repo) Dir() string { return r.dir }

// Path returns the record file for key; an empty key means the configured name.
func (r *Repo) Path(key string) string {
	if key == "" {
		key = r.name
	}
	return filepath.Join(r.dir, key+Extension)
}

// Load returns the stored container, creating and persisting a default one
// when none exists. Recoverable failures are reported and the default
// container is returned; only fatal ones come back as errors.
func (r *Repo) Load() (Container, error) {
	if _, err := os.Stat(r.Path("")); errors.Is(err, fs.ErrNotExist) {
		c := Container{}
		if err := r.Create(c); fault.IsFatal(err) {
			return c, err
		}
		return c, nil
	}
	c, err := r.Retrieve("")
	if err != nil && !fault.IsFatal(err) {
		return Container{}, nil
	}
	return c, err
}

// Create writes c to a new record file. It refuses to replace an existing
// file; use Update, or Delete and then Create.
func (r *Repo) Create(c Container) error {
	path := r.Path("")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return r.refuse(OpCreate, path, fault.IO, msgExists, ErrExists)
		}
		return r.fail(OpCreate, path, err)
	}
	if err := Encode(f, c); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return r.fail(OpCreate, path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return r.fail(OpCreate, path, err)
	}
	r.log.Info("script container created", "path", path)
	return nil
}

// Retrieve reads the record stored under key (empty for the configured name).
func (r *Repo) Retrieve(key string) (Container, error) {
	path := r.Path(key)
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Container{}, r.fail(OpRetrieve, path, err)
	}
	defer func() { _ = f.Close() }()
	c, err := Decode(f)
	if err != nil {
		return Container{}, r.fail(OpRetrieve, path, fmt.Errorf("decode script container: %w", err))
	}
	return c, nil
}

// Update replaces an existing record file with c.
func (r *Repo) Update(c Container) error {
	path := r.Path("")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return r.refuse(OpUpdate, path, fault.NotFound, msgMissing, ErrMissing)
	}
	return r.replace(OpUpdate, path, c)
}

// Save writes c whether or not a record file exists.
func (r *Repo) Save(c Container) error {
	return r.replace(OpUpdate, r.Path(""), c)
}

// Delete removes the record stored under key. A missing file in an existing
// directory is not an error; a missing directory is.
func (r *Repo) Delete(key string) error {
	path := r.Path(key)
	err := os.Remove(path)
	if err == nil {
		r.log.Info("script container deleted", "path", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if st, serr := os.Stat(filepath.Dir(path)); serr == nil && st.IsDir() {
			return nil
		}
	}
	return r.fail(OpDelete, path, err)
}

// replace writes c to a temp file beside path and renames it into place so a
// failed write never leaves a truncated record.
func (r *Repo) replace(op, path string, c Container) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return r.fail(op, path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if err := Encode(tmp, c); err != nil {
		_ = tmp.Close()
		cleanup()
		return r.fail(op, path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return r.fail(op, path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return r.fail(op, path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return r.fail(op, path, err)
	}
	r.log.Info("script container written", "op", op, "path", path)
	return nil
}

func (r *Repo) fail(op, path string, err error) error {
	fe := fault.New(op, path, err)
	fe.Detail = Message(op, fe.Kind, err)
	r.report(fe)
	return fe
}

func (r *Repo) refuse(op, path string, k fault.Kind, detail string, cause error) error {
	fe := &fault.Error{Op: op, Kind: k, Path: path, Detail: detail, Err: cause}
	r.report(fe)
	return fe
}

func (r *Repo) report(fe *fault.Error) {
	level := slog.LevelWarn
	if fe.Fatal() {
		level = slog.LevelError
	}
	r.log.Log(context.Background(), level, "script container "+fe.Op+" failed",
		"path", fe.Path, "kind", fe.Kind.String(), "error", fe.Err)
	if r.notifier != nil {
		r.notifier.Show(fe.Detail)
	}
}
