package profiles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"splitsheet/internal/enrich"
)

type roleProfile struct {
	Phone          string `toml:"phone"`
	Address        string `toml:"address"`
	IPINumber      string `toml:"ipi_number"`
	PROAffiliation string `toml:"pro_affiliation"`
}

type user struct {
	Ref          string       `toml:"ref"`
	FullName     string       `toml:"full_name"`
	Email        string       `toml:"email"`
	Phone        string       `toml:"phone"`
	Address      string       `toml:"address"`
	Artist       *roleProfile `toml:"artist"`
	Musician     *roleProfile `toml:"musician"`
	Professional *roleProfile `toml:"professional"`
}

type document struct {
	Users []user `toml:"users"`
}

// File is a read-only profile directory loaded from a TOML document with one
// [[users]] table per known user and optional artist, musician and
// professional sub-tables.
type File struct {
	path string

	mu    sync.RWMutex
	users map[string]user
}

// Open loads path. A missing file yields an empty directory.
func Open(path string) (*File, error) {
	f := &File{path: path, users: map[string]user{}}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the file from disk.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.mu.Lock()
		f.users = map[string]user{}
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse profiles %s: %w", f.path, err)
	}
	users := make(map[string]user, len(doc.Users))
	for _, u := range doc.Users {
		ref := strings.TrimSpace(u.Ref)
		if ref == "" {
			return fmt.Errorf("parse profiles %s: user without ref", f.path)
		}
		users[ref] = u
	}
	f.mu.Lock()
	f.users = users
	f.mu.Unlock()
	return nil
}

// Len reports the number of known users.
func (f *File) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users)
}

// Profiles implements enrich.ProfileStore.
func (f *File) Profiles(ctx context.Context, identityRef string) ([]enrich.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	u, ok := f.users[strings.TrimSpace(identityRef)]
	f.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out := []enrich.Profile{{
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		Address:  u.Address,
	}}
	for _, rp := range []*roleProfile{u.Artist, u.Musician, u.Professional} {
		if rp == nil {
			continue
		}
		out = append(out, enrich.Profile{
			Phone:          rp.Phone,
			Address:        rp.Address,
			IPINumber:      rp.IPINumber,
			PROAffiliation: rp.PROAffiliation,
		})
	}
	return out, nil
}
