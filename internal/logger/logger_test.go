package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestRingKeepsNewest(t *testing.T) {
	l := New(3)
	l.SetMirror(nil)
	for _, s := range []string{"one", "two", "three", "four"} {
		l.Info(s)
	}

	all := l.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if all[0].Text != "four" || all[2].Text != "two" {
		t.Errorf("unexpected order: %+v", all)
	}

	recent := l.GetRecent(1)
	if len(recent) != 1 || recent[0].Text != "four" {
		t.Errorf("unexpected recent: %+v", recent)
	}
}

func TestMirrorReceivesMessages(t *testing.T) {
	var buf bytes.Buffer
	l := New(10)
	l.SetMirror(log.New(&buf, "", 0))

	l.Warningf("peer %s unreachable", "Bob")

	if !strings.Contains(buf.String(), "warning: peer Bob unreachable") {
		t.Errorf("mirror output missing message: %q", buf.String())
	}
	if got := l.GetRecent(1)[0].Level; got != LevelWarning {
		t.Errorf("expected warning level, got %s", got)
	}
}
