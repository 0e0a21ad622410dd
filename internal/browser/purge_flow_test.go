// internal/browser/purge_flow_test.go
package browser_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/vaultpurge/internal/browser"
	"github.com/xkilldash9x/vaultpurge/internal/config"
	"github.com/xkilldash9x/vaultpurge/internal/otp"
	"github.com/xkilldash9x/vaultpurge/internal/purge"
	"github.com/xkilldash9x/vaultpurge/internal/vault"
)

// fakeVaultPage mimics the legacy web vault: hash routes for login, two-factor, vault and
// settings, and a modal purge confirmation that posts the typed password.
const fakeVaultPage = `<!DOCTYPE html>
<html><body><div id="app"></div>
<script>
const app = document.getElementById('app');
const post = (path, body) => fetch(path, {method: 'POST', body: body});
const views = {
  '': () => {
    app.innerHTML = '<form onsubmit="return false"><input id="email"><input id="masterPassword" type="password">' +
      '<button class="btn btn-submit" id="login">Log In</button></form>';
    document.getElementById('login').onclick = () => {
      post('/login', document.getElementById('email').value + ':' + document.getElementById('masterPassword').value)
        .then(() => { location.hash = '#/2fa'; });
    };
  },
  '#/2fa': () => {
    app.innerHTML = '<form onsubmit="return false"><input id="code"><button class="btn btn-submit" id="verify">Continue</button></form>';
    document.getElementById('verify').onclick = () => {
      post('/2fa', document.getElementById('code').value).then(() => { location.hash = '#/vault'; });
    };
  },
  '#/vault': () => {
    app.innerHTML = '<nav><a href="#/settings">Settings</a></nav><p>vault</p>';
  },
  '#/settings': () => {
    app.innerHTML = '<div class="card-body"><p>Danger zone</p><div style="height: 3000px"></div>' +
      '<button class="btn btn-outline-danger" id="purge">Purge Vault</button></div>';
    document.getElementById('purge').onclick = () => {
      const modal = document.createElement('form');
      modal.setAttribute('onsubmit', 'return false');
      modal.innerHTML = '<input id="confirm" type="password"><div class="modal-footer">' +
        '<button class="btn btn-danger btn-submit">Purge Vault</button></div>';
      document.body.appendChild(modal);
      modal.querySelector('button').onclick = () => {
        post('/purge', document.getElementById('confirm').value).then(() => { location.hash = '#/vault'; });
      };
      document.getElementById('confirm').focus();
    };
  },
};
const render = () => (views[location.hash] || views[''])();
window.addEventListener('hashchange', render);
render();
</script></body></html>`

type fakeVault struct {
	mu    sync.Mutex
	posts map[string]string
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.posts[r.URL.Path] = string(body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, fakeVaultPage)
}

func (f *fakeVault) posted(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.posts[path]
	return v, ok
}

func TestPurgeAgainstFakeVault(t *testing.T) {
	requireChrome(t)

	fake := &fakeVault{posts: map[string]string{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := config.NewDefaultConfig()
	cfg.Browser.NoSandbox = true
	cfg.Browser.TypingDelay = time.Millisecond
	cfg.Flow.NetworkIdleQuiet = 100 * time.Millisecond
	cfg.Flow.ConfirmDelay = 200 * time.Millisecond
	cfg.Flow.StepTimeout = 10 * time.Second
	cfg.Flow.OTPMinValidity = 0

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session, err := browser.NewSession(ctx, cfg, logger)
	require.NoError(t, err)
	defer session.Close(context.Background())

	codes, err := otp.NewGenerator("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	profile, err := vault.Lookup("legacy")
	require.NoError(t, err)

	creds := purge.Credentials{Host: server.URL, Email: "owner@example.com", MasterPassword: "s3cret"}
	report, err := purge.NewRunner(session, profile, creds, codes, cfg.Flow, logger).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.True(t, report.TwoFactor)

	login, _ := fake.posted("/login")
	assert.Equal(t, "owner@example.com:s3cret", login)
	code, _ := fake.posted("/2fa")
	assert.Len(t, code, 6)
	purged, ok := fake.posted("/purge")
	require.True(t, ok, "purge was not confirmed")
	assert.Equal(t, "s3cret", purged)
}
