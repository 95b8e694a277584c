package config

import (
	"sync"
	"testing"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

func TestAdminPrefixValidation(t *testing.T) {
	cases := []struct {
		prefix string
		ok     bool
	}{
		{"admin", true},
		{"site_admin-2", true},
		{"ADMIN99", true},
		{"", false},
		{"admin/panel", false},
		{"admin panel", false},
		{"admin?", false},
	}
	for _, tc := range cases {
		err := ValidateAdminPrefix(tc.prefix)
		if tc.ok && err != nil {
			t.Errorf("ValidateAdminPrefix(%q) = %v, want nil", tc.prefix, err)
		}
		if !tc.ok && !domain.IsInvalidInput(err) {
			t.Errorf("ValidateAdminPrefix(%q) = %v, want invalid-input", tc.prefix, err)
		}
	}
}

func TestAdminPrefixSwap(t *testing.T) {
	p, err := NewAdminPrefix("admin")
	if err != nil {
		t.Fatalf("new prefix: %v", err)
	}
	if got := p.Get(); got != "admin" {
		t.Fatalf("initial prefix = %q", got)
	}

	if err := p.Set("back-office"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := p.Get(); got != "back-office" {
		t.Errorf("prefix after set = %q", got)
	}

	// A rejected value leaves the current prefix untouched.
	if err := p.Set("not/valid"); !domain.IsInvalidInput(err) {
		t.Errorf("set invalid: got %v", err)
	}
	if got := p.Get(); got != "back-office" {
		t.Errorf("prefix after failed set = %q", got)
	}
}

func TestAdminPrefixConcurrentReads(t *testing.T) {
	p, err := NewAdminPrefix("admin")
	if err != nil {
		t.Fatalf("new prefix: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if got := p.Get(); got != "admin" && got != "ops" {
					t.Errorf("unexpected prefix %q", got)
					return
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		if err := p.Set("ops"); err != nil {
			t.Errorf("set: %v", err)
		}
	}
	wg.Wait()
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Addr == "" || cfg.DatabaseURL == "" || cfg.ContentDir == "" {
		t.Errorf("defaults missing: %+v", cfg)
	}
	if err := ValidateAdminPrefix(cfg.AdminURLPrefix); err != nil {
		t.Errorf("default admin prefix invalid: %v", err)
	}
}
