package cachekey

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/blobcache/blobcache/internal/data"
)

func sum(identity string) string {
	s := sha1.Sum([]byte(identity))
	return hex.EncodeToString(s[:])
}

func TestDerive(t *testing.T) {
	t.Run("policy none ignores query", func(t *testing.T) {
		dir, key, err := Derive("https://cdn.example.com/img/photo.JPG?v=2", data.PolicyNone)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		if dir != "cdn.example.com" {
			t.Fatalf("dir = %q", dir)
		}
		if want := sum("/img/photo.JPG") + ".JPG"; key != want {
			t.Fatalf("key = %q, want %q", key, want)
		}
	})

	t.Run("named policy appends listed params", func(t *testing.T) {
		policy := data.KeyPolicy{Mode: data.KeyNamed, Params: []string{"v"}}
		_, key, err := Derive("https://cdn.example.com/img/photo.JPG?v=2", policy)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		if want := sum("/img/photo.JPGv=2") + ".JPG"; key != want {
			t.Fatalf("key = %q, want %q", key, want)
		}
		_, noneKey, _ := Derive("https://cdn.example.com/img/photo.JPG?v=2", data.PolicyNone)
		if key == noneKey {
			t.Fatalf("named and none policies collided on %q", key)
		}
	})

	t.Run("named policy skips absent params", func(t *testing.T) {
		policy := data.KeyPolicy{Mode: data.KeyNamed, Params: []string{"w", "v"}}
		_, a, _ := Derive("https://cdn.example.com/img/photo.JPG?v=2", policy)
		_, b, _ := Derive("https://cdn.example.com/img/photo.JPG?v=2&other=1", policy)
		if a != b {
			t.Fatalf("unlisted param changed key: %q vs %q", a, b)
		}
		if want := sum("/img/photo.JPGv=2") + ".JPG"; a != want {
			t.Fatalf("key = %q, want %q", a, want)
		}
	})

	t.Run("policy all includes full query", func(t *testing.T) {
		_, a, _ := Derive("https://cdn.example.com/img/photo.JPG?v=2", data.KeyPolicy{Mode: data.KeyAll})
		_, b, _ := Derive("https://cdn.example.com/img/photo.JPG?v=3", data.KeyPolicy{Mode: data.KeyAll})
		if a == b {
			t.Fatalf("differing queries produced identical keys under all policy")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			dir, key, err := Derive("https://cdn.example.com/a/b.png?x=1", data.PolicyNone)
			if err != nil || dir != "cdn.example.com" || key != sum("/a/b.png")+".png" {
				t.Fatalf("iteration %d: dir=%q key=%q err=%v", i, dir, key, err)
			}
		}
	})

	t.Run("no extension omits dot", func(t *testing.T) {
		_, key, err := Derive("https://cdn.example.com/img/photo", data.PolicyNone)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		if want := sum("/img/photo"); key != want {
			t.Fatalf("key = %q, want bare digest %q", key, want)
		}
	})

	t.Run("invalid locator", func(t *testing.T) {
		for _, loc := range []string{"", "not a url", "/relative/path.png", "%%%"} {
			if _, _, err := Derive(loc, data.PolicyNone); !errors.Is(err, data.ErrInvalidLocator) {
				t.Fatalf("locator %q: expected ErrInvalidLocator, got %v", loc, err)
			}
		}
	})

	t.Run("bad policy", func(t *testing.T) {
		_, _, err := Derive("https://cdn.example.com/a.png", data.KeyPolicy{Mode: "bogus"})
		if !errors.Is(err, data.ErrBadPolicy) {
			t.Fatalf("expected ErrBadPolicy, got %v", err)
		}
	})
}
