package obs

import (
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestReadBuildKeepsExplicitCommit(t *testing.T) {
	b := ReadBuild("1.2.0", "0123456789abcdef")
	if b.Version != "1.2.0" || b.Commit != "0123456789ab" {
		t.Fatalf("unexpected build %+v", b)
	}
	if b.GoVersion != runtime.Version() {
		t.Fatalf("go version = %q", b.GoVersion)
	}
	if ReadBuild("dev", "").Commit == "" {
		t.Fatal("commit must never be empty")
	}
}

func TestPublishReplacesPreviousBuild(t *testing.T) {
	ReadBuild("0.1.0", "aaa").Publish()
	ReadBuild("0.2.0", "bbb").Publish()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "samaj_build_info" {
			continue
		}
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("expected one series, got %d", len(mf.GetMetric()))
		}
		labels := map[string]string{}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["version"] != "0.2.0" || labels["commit"] != "bbb" {
			t.Fatalf("unexpected labels %v", labels)
		}
		return
	}
	t.Fatal("samaj_build_info not registered")
}
