package browser

import (
	"context"
	"testing"
)

func TestNavState_String(t *testing.T) {
	tests := []struct {
		state NavState
		want  string
	}{
		{StateIdle, "idle"},
		{StateNavigating, "navigating"},
		{StateWaitingForLoad, "waiting_for_load"},
		{StateWaitingForNetworkIdle, "waiting_for_network_idle"},
		{StateSettled, "settled"},
		{StateTimedOut, "timed_out"},
		{StateNavigationFailed, "navigation_failed"},
		{NavState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("NavState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestFetchOutcome_Failed(t *testing.T) {
	if (&FetchOutcome{State: StateSettled}).Failed() {
		t.Error("settled outcome must not report failed")
	}
	if !(&FetchOutcome{State: StateTimedOut}).Failed() {
		t.Error("timed-out outcome must report failed")
	}
	if !(&FetchOutcome{State: StateNavigationFailed}).Failed() {
		t.Error("navigation-failed outcome must report failed")
	}
}

func TestOriginReferer(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/deep/path?q=1", "https://example.com/"},
		{"http://sub.example.com", "http://sub.example.com/"},
		{"not a url", ""},
		{"/relative/only", ""},
	}
	for _, tt := range tests {
		if got := originReferer(tt.url); got != tt.want {
			t.Errorf("originReferer(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"Referer": "https://example.com/", "X-Test": "1"})
	if len(m) != 2 {
		t.Fatalf("len = %d, want 2", len(m))
	}
	if m["Referer"].Str() != "https://example.com/" {
		t.Errorf("Referer = %q", m["Referer"].Str())
	}
}

func TestHasVisibleText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"plain text", "<html><body><p>Hello</p></body></html>", true},
		{"empty body", "<html><body></body></html>", false},
		{"whitespace only", "<html><body>   \n\t </body></html>", false},
		{"script only", "<html><body><script>var x = 'hidden';</script></body></html>", false},
		{"style only", "<html><body><style>.a{color:red}</style></body></html>", false},
		{"noscript only", "<html><body><noscript>enable js</noscript></body></html>", false},
		{"text after script", "<html><body><script>x()</script>visible</body></html>", true},
		{"error page with body", "<html><body><h1>404 Not Found</h1></body></html>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasVisibleText(tt.html); got != tt.want {
				t.Errorf("hasVisibleText = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitPlan(t *testing.T) {
	tests := []struct {
		mode        string
		windowLoad  bool
		networkIdle bool
	}{
		{"domcontentloaded", false, false},
		{"load", true, false},
		{"networkidle", true, true},
		{"", true, true},
	}
	for _, tt := range tests {
		windowLoad, networkIdle := waitPlan(tt.mode)
		if windowLoad != tt.windowLoad || networkIdle != tt.networkIdle {
			t.Errorf("waitPlan(%q) = (%v, %v), want (%v, %v)",
				tt.mode, windowLoad, networkIdle, tt.windowLoad, tt.networkIdle)
		}
	}
}

func TestSettleContext(t *testing.T) {
	live := context.Background()
	got, cancel := settleContext(live)
	cancel()
	if got != live {
		t.Error("live context must be kept for the DOM freeze")
	}

	expired, cancelExpired := context.WithCancel(context.Background())
	cancelExpired()
	got, cancel = settleContext(expired)
	defer cancel()
	if got.Err() != nil {
		t.Errorf("DOM freeze context unusable after the idle wait ate the deadline: %v", got.Err())
	}
	if _, ok := got.Deadline(); !ok {
		t.Error("grace context must carry its own deadline")
	}
}

func TestViewportProfiles(t *testing.T) {
	if desktopProfile.width != 1366 || desktopProfile.height != 768 || desktopProfile.mobile {
		t.Errorf("desktop profile = %+v", desktopProfile)
	}
	if mobileProfile.width != 390 || mobileProfile.height != 844 || !mobileProfile.mobile {
		t.Errorf("mobile profile = %+v", mobileProfile)
	}
}

func TestSetupHijack_NothingToBlock(t *testing.T) {
	if r := setupHijack(nil, nil); r != nil {
		t.Error("no blocked types must not install a router")
	}
	if r := setupHijack(nil, []string{"NotAResourceType"}); r != nil {
		t.Error("unknown type names must not install a router")
	}
}
