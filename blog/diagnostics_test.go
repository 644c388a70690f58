package blog_test

import (
	"errors"
	"testing"

	"github.com/blocklayer/blockstream/blog"
)

func TestFooterRewriteLogsAtDebug(t *testing.T) {
	out := newTestOutputter(blog.Debug)
	defer blog.SetOutputter(blog.SetOutputter(out))

	blog.FooterRewrite(4096, 3, 12000)
	msg := out.Next(blog.Debug)
	if msg == "" {
		t.Fatal("expected a debug-level message")
	}
}

func TestTombstoneAppendLogsAtDebug(t *testing.T) {
	out := newTestOutputter(blog.Debug)
	defer blog.SetOutputter(blog.SetOutputter(out))

	blog.TombstoneAppend(7)
	if out.Next(blog.Debug) == "" {
		t.Fatal("expected a debug-level message")
	}
}

func TestTombstoneRecoveredSkipsZero(t *testing.T) {
	out := newTestOutputter(blog.Info)
	defer blog.SetOutputter(blog.SetOutputter(out))

	blog.TombstoneRecovered(0)
	if !out.Empty() {
		t.Fatal("expected no message when no tombstones were recovered")
	}

	blog.TombstoneRecovered(2)
	if out.Next(blog.Info) == "" {
		t.Fatal("expected an info-level message when tombstones were recovered")
	}
}

func TestCorruptionLogsAtError(t *testing.T) {
	out := newTestOutputter(blog.Error)
	defer blog.SetOutputter(blog.SetOutputter(out))

	blog.Corruption("footer body", errors.New("bad length"))
	if out.Next(blog.Error) == "" {
		t.Fatal("expected an error-level message")
	}
}
