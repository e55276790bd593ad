package intel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeService struct {
	name string
	hit  bool
	err  error
}

func (f *fakeService) Name() string { return f.name }
func (f *fakeService) Check(ctx context.Context, rawURL string) (bool, error) {
	return f.hit, f.err
}

func TestResolveWhitelistShortCircuits(t *testing.T) {
	r := NewResolver(testStore(), NewMemoryFeedCache(time.Hour),
		&fakeService{name: "always_hit", hit: true})

	v := r.Resolve(context.Background(), "https://mail.google.com/inbox")
	if v.Status != StatusWhitelisted || v.IsMalicious {
		t.Errorf("whitelisted URL got %+v", v)
	}
	if len(v.Sources) != 0 {
		t.Error("whitelist short-circuit must not consult services")
	}
}

func TestResolveServiceHit(t *testing.T) {
	r := NewResolver(testStore(), NewMemoryFeedCache(time.Hour),
		&fakeService{name: "clean", hit: false},
		&fakeService{name: "confirms", hit: true})

	v := r.Resolve(context.Background(), "https://paypa1-secure.xyz/login")
	if !v.IsMalicious || v.Status != StatusVerifiedPhish {
		t.Errorf("expected verified phish, got %+v", v)
	}
	if !v.Sources["confirms"] || v.Sources["clean"] {
		t.Errorf("per-service answers wrong: %v", v.Sources)
	}
}

func TestResolveAllClean(t *testing.T) {
	r := NewResolver(testStore(), NewMemoryFeedCache(time.Hour),
		&fakeService{name: "a"}, &fakeService{name: "b"})

	v := r.Resolve(context.Background(), "https://unknown-shop.example/")
	if v.IsMalicious || v.Status != StatusClean {
		t.Errorf("expected clean, got %+v", v)
	}
}

func TestResolveFeedHit(t *testing.T) {
	cache := NewMemoryFeedCache(time.Hour)
	_ = cache.Add(context.Background(), "https://evil.example/login")
	r := NewResolver(testStore(), cache)

	v := r.Resolve(context.Background(), "HTTPS://EVIL.example/login")
	if !v.IsMalicious || !v.Sources["feed"] {
		t.Errorf("feed entry should confirm after normalization, got %+v", v)
	}
}

func TestResolveServiceFailureIsNotAHit(t *testing.T) {
	r := NewResolver(testStore(), nil,
		&fakeService{name: "down", err: errors.New("connection refused")})

	v := r.Resolve(context.Background(), "https://unknown.example/")
	if v.IsMalicious || v.Status != StatusClean {
		t.Errorf("service failure must not confirm a threat: %+v", v)
	}
}

func TestResolverFiltersNilServices(t *testing.T) {
	r := NewResolver(testStore(), nil, nil, &fakeService{name: "a"}, nil)
	if r.ServiceCount() != 1 {
		t.Errorf("ServiceCount = %d, want 1", r.ServiceCount())
	}

	r2 := NewResolver(testStore(), nil, NewSafeBrowsing(""))
	if r2.ServiceCount() != 0 {
		t.Error("unconfigured safe browsing should be skipped")
	}
}

func TestNewSafeBrowsingRequiresKey(t *testing.T) {
	if NewSafeBrowsing("") != nil {
		t.Error("empty key should yield nil service")
	}
}

func TestURLhausCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil || req.PostFormValue("url") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"query_status":"ok","url_status":"online"}`))
	}))
	defer srv.Close()

	u := NewURLhaus(srv.URL)
	hit, err := u.Check(context.Background(), "https://evil.example/payload.exe")
	if err != nil || !hit {
		t.Errorf("Check = %v, %v, want hit", hit, err)
	}
}

func TestURLhausNon200IsNotAHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u := NewURLhaus(srv.URL)
	hit, err := u.Check(context.Background(), "https://evil.example/")
	if err != nil || hit {
		t.Errorf("non-2xx must read as not confirmed: %v, %v", hit, err)
	}
}
