package fscheck

import (
	"bufio"
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/obsidianstack/diskhealth/internal/model"
	"github.com/obsidianstack/diskhealth/internal/probe"
)

// blkid exits 2 when the device carries no recognisable signature.
const blkidNothingFound = 2

var reBlkidQuoted = regexp.MustCompile(`\b([A-Z_]+)="([^"]*)"`)

// Identify fills fstype, UUID and label from blkid where lsblk left them
// empty. Values lsblk already reported are kept. A missing blkid is not an
// error; other failures come back as a note.
func (i *Inspector) Identify(ctx context.Context, p model.Partition) (model.Partition, string) {
	if p.FSType != nil && p.UUID != nil && p.Label != nil {
		return p, ""
	}

	res, err := i.runner.Run(ctx, "blkid", "-o", "export", p.Path)
	switch {
	case errors.Is(err, probe.ErrNotFound):
		return p, ""
	case errors.Is(err, probe.ErrPermissionDenied):
		return p, "blkid requires root"
	case err != nil:
		return p, "blkid: " + err.Error()
	}
	if res.ExitCode == blkidNothingFound {
		return p, ""
	}

	tags := ParseBlkid(res.Stdout)
	fill := func(dst **string, key string) {
		if *dst != nil {
			return
		}
		if v, ok := tags[key]; ok && v != "" {
			*dst = model.Ptr(v)
		}
	}
	fill(&p.FSType, "TYPE")
	fill(&p.UUID, "UUID")
	fill(&p.Label, "LABEL")
	return p, ""
}

// ParseBlkid reads blkid tags from either `-o export` (KEY=value per line)
// or the default `dev: KEY="value" ...` form.
func ParseBlkid(out string) map[string]string {
	tags := make(map[string]string)

	if m := reBlkidQuoted.FindAllStringSubmatch(out, -1); len(m) > 0 && strings.Contains(out, `="`) {
		for _, kv := range m {
			tags[kv[1]] = kv[2]
		}
		return tags
	}

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || k == "" {
			continue
		}
		tags[k] = unescapeExport(v)
	}
	return tags
}

// unescapeExport undoes the backslash escaping blkid applies to export
// values containing spaces or shell metacharacters.
func unescapeExport(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	escaped := false
	for _, r := range v {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
