package compute

import (
	"testing"

	"github.com/obsidianstack/diskhealth/internal/config"
	"github.com/obsidianstack/diskhealth/internal/model"
)

func th() config.Thresholds { return config.Defaults().Thresholds }

func smartRep(v model.Verdict, temp int) *model.SmartReport {
	return &model.SmartReport{Verdict: v, TemperatureC: model.Ptr(temp), ReallocatedSectors: model.Ptr(int64(0))}
}

func usageRep(pct int) *model.UsageReport {
	return &model.UsageReport{Percent: pct, UsedBytes: uint64(pct), TotalBytes: 100}
}

func mountedPart(name string) model.Partition {
	return model.Partition{Name: name, Path: "/dev/" + name, MountPoint: model.Ptr("/")}
}

func unmountedPart(name, fstype string, chk *model.FilesystemCheck) model.Partition {
	return model.Partition{Name: name, Path: "/dev/" + name, FSType: model.Ptr(fstype), Check: chk}
}

func rules(out Output) []string {
	r := make([]string, len(out.Issues))
	for i, is := range out.Issues {
		r[i] = is.Rule
	}
	return r
}

func sameRules(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// --- reference scenarios ---

func TestCompute_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantScore int
		wantClass model.Class
		wantRules []string
	}{
		{
			name: "failed drive, hot and full",
			// 1000 + 200 + 300
			in:        Input{Smart: smartRep(model.VerdictFailed, 65), Usage: usageRep(97)},
			wantScore: 1500,
			wantClass: model.ClassCritical,
			wantRules: []string{RuleSmartFailed, RuleTempCritical, RuleUsageCritical},
		},
		{
			name: "warm, low space, unclean unmounted ext4",
			// 100 + 30 + 60
			in: Input{
				Smart: smartRep(model.VerdictPassed, 45),
				Usage: usageRep(92),
				Partitions: []model.Partition{
					mountedPart("sda1"),
					unmountedPart("sda2", "ext4", &model.FilesystemCheck{Clean: model.Ptr(false), NeedsCheck: true, State: "not clean"}),
				},
			},
			wantScore: 190,
			wantClass: model.ClassWarning,
			wantRules: []string{RuleUsageWarning, RuleUnmountedPartition, RuleUncleanPartition},
		},
		{
			name:      "smartctl absent, otherwise healthy",
			in:        Input{Smart: &model.SmartReport{Verdict: model.VerdictUnknown, Note: "smartctl not installed"}, Usage: usageRep(40)},
			wantScore: 50,
			wantClass: model.ClassInfo,
			wantRules: []string{RuleSmartUnknown},
		},
		{
			name:      "zero partitions, healthy",
			in:        Input{Smart: smartRep(model.VerdictPassed, 30)},
			wantScore: 0,
			wantClass: model.ClassHealthy,
			wantRules: []string{},
		},
		{
			name: "unmounted xfs without corruption",
			in: Input{
				Smart:      smartRep(model.VerdictPassed, 35),
				Partitions: []model.Partition{unmountedPart("sdc1", "xfs", &model.FilesystemCheck{Clean: model.Ptr(true), State: "clean"})},
			},
			wantScore: 30,
			wantClass: model.ClassInfo,
			wantRules: []string{RuleUnmountedPartition},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := Compute(tc.in, th())
			if out.Score != tc.wantScore {
				t.Errorf("Score = %d, want %d (issues %+v)", out.Score, tc.wantScore, out.Issues)
			}
			if out.Class != tc.wantClass {
				t.Errorf("Class = %s, want %s", out.Class, tc.wantClass)
			}
			if got := rules(out); !sameRules(got, tc.wantRules) {
				t.Errorf("rules = %v, want %v", got, tc.wantRules)
			}
		})
	}
}

// --- SMART verdicts ---

func TestCompute_SmartVerdicts(t *testing.T) {
	tests := []struct {
		verdict model.Verdict
		score   int
		sev     model.Severity
	}{
		{model.VerdictFailed, 1000, model.SeverityCritical},
		{model.VerdictUnknown, 50, model.SeverityWarning},
		{model.VerdictNeedRoot, 10, model.SeverityInfo},
		{model.VerdictNoSupport, 5, model.SeverityInfo},
		{model.VerdictPassed, 0, ""},
	}
	for _, tc := range tests {
		t.Run(string(tc.verdict), func(t *testing.T) {
			out := Compute(Input{Smart: &model.SmartReport{Verdict: tc.verdict}}, th())
			if out.Score != tc.score {
				t.Errorf("Score = %d, want %d", out.Score, tc.score)
			}
			if tc.sev == "" {
				if len(out.Issues) != 0 {
					t.Errorf("issues = %+v, want none", out.Issues)
				}
				return
			}
			if len(out.Issues) != 1 || out.Issues[0].Severity != tc.sev {
				t.Errorf("issues = %+v, want one %s", out.Issues, tc.sev)
			}
		})
	}
}

func TestCompute_Reallocated(t *testing.T) {
	rep := smartRep(model.VerdictPassed, 30)
	rep.ReallocatedSectors = model.Ptr(int64(3))

	out := Compute(Input{Smart: rep}, th())
	if out.Score != 300 {
		t.Errorf("Score = %d, want 3 x 100", out.Score)
	}
	if out.Issues[0].Severity != model.SeverityWarning || out.Issues[0].Rule != RuleReallocated {
		t.Errorf("issue = %+v", out.Issues[0])
	}
	if out.Class != model.ClassWarning {
		t.Errorf("Class = %s", out.Class)
	}
}

// --- tier exclusivity and boundaries ---

func TestCompute_TemperatureTiers(t *testing.T) {
	tests := []struct {
		temp  int
		want  int
		rules []string
	}{
		{49, 0, []string{}},
		{50, 50, []string{RuleTempWarning}},
		{59, 50, []string{RuleTempWarning}},
		{60, 200, []string{RuleTempCritical}},
		{85, 200, []string{RuleTempCritical}},
	}
	for _, tc := range tests {
		out := Compute(Input{Smart: smartRep(model.VerdictPassed, tc.temp)}, th())
		if out.Score != tc.want || !sameRules(rules(out), tc.rules) {
			t.Errorf("temp %d: score %d rules %v, want %d %v", tc.temp, out.Score, rules(out), tc.want, tc.rules)
		}
	}
}

func TestCompute_UsageTiers(t *testing.T) {
	tests := []struct {
		pct   int
		want  int
		rules []string
	}{
		{79, 0, []string{}},
		{80, 20, []string{RuleUsageInfo}},
		{89, 20, []string{RuleUsageInfo}},
		{90, 100, []string{RuleUsageWarning}},
		{94, 100, []string{RuleUsageWarning}},
		{95, 300, []string{RuleUsageCritical}},
		{100, 300, []string{RuleUsageCritical}},
	}
	for _, tc := range tests {
		out := Compute(Input{Usage: usageRep(tc.pct)}, th())
		if out.Score != tc.want || !sameRules(rules(out), tc.rules) {
			t.Errorf("usage %d%%: score %d rules %v, want %d %v", tc.pct, out.Score, rules(out), tc.want, tc.rules)
		}
	}
}

func TestCompute_MissingReports(t *testing.T) {
	// Nil temperature and nil usage fire nothing.
	out := Compute(Input{Smart: &model.SmartReport{Verdict: model.VerdictPassed}}, th())
	if out.Score != 0 || len(out.Issues) != 0 {
		t.Errorf("out = %+v, want zero", out)
	}
	out = Compute(Input{}, th())
	if out.Score != 0 || out.Class != model.ClassHealthy {
		t.Errorf("empty input = %+v", out)
	}
}

func TestCompute_PartitionRules(t *testing.T) {
	parts := []model.Partition{
		mountedPart("sdb1"),
		unmountedPart("sdb2", "ext4", &model.FilesystemCheck{Clean: model.Ptr(true), State: "clean"}),
		unmountedPart("sdb3", "ext4", &model.FilesystemCheck{
			Clean: model.Ptr(true), State: "clean", NeedsCheck: true,
			MountCount: model.Ptr(35), MaxMountCount: model.Ptr(30),
		}),
		unmountedPart("sdb4", "ntfs", nil),
		unmountedPart("sdb5", "f2fs", &model.FilesystemCheck{State: "unsupported"}),
	}
	out := Compute(Input{Partitions: parts}, th())

	// four unmounted (4 x 30) plus one due for a check (60)
	if out.Score != 180 {
		t.Errorf("Score = %d, want 180 (issues %+v)", out.Score, out.Issues)
	}
	want := []string{
		RuleUnmountedPartition,
		RuleUnmountedPartition, RuleUncleanPartition,
		RuleUnmountedPartition,
		RuleUnmountedPartition,
	}
	if got := rules(out); !sameRules(got, want) {
		t.Errorf("rules = %v, want %v", got, want)
	}
}

// --- properties ---

func TestCompute_ScoreIsSumOfContributions(t *testing.T) {
	inputs := []Input{
		{Smart: smartRep(model.VerdictFailed, 70), Usage: usageRep(99)},
		{Smart: &model.SmartReport{Verdict: model.VerdictNeedRoot}, Usage: usageRep(85),
			Partitions: []model.Partition{unmountedPart("sdx1", "vfat", &model.FilesystemCheck{Clean: model.Ptr(false)})}},
		{},
	}
	for i, in := range inputs {
		out := Compute(in, th())
		sum := 0
		for _, is := range out.Issues {
			if is.Contribution < 0 {
				t.Errorf("input %d: negative contribution %+v", i, is)
			}
			sum += is.Contribution
		}
		if out.Score != sum || out.Score < 0 {
			t.Errorf("input %d: Score = %d, sum of contributions = %d", i, out.Score, sum)
		}
	}
}

func TestCompute_Deterministic(t *testing.T) {
	in := Input{
		Smart: smartRep(model.VerdictUnknown, 55),
		Usage: usageRep(91),
		Partitions: []model.Partition{
			unmountedPart("sdb1", "ext4", &model.FilesystemCheck{Clean: model.Ptr(false)}),
		},
	}
	first := Compute(in, th())
	for i := 0; i < 10; i++ {
		again := Compute(in, th())
		if again.Score != first.Score || !sameRules(rules(again), rules(first)) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score int
		want  model.Class
	}{
		{0, model.ClassHealthy},
		{1, model.ClassInfo},
		{99, model.ClassInfo},
		{100, model.ClassWarning},
		{499, model.ClassWarning},
		{500, model.ClassCritical},
		{10000, model.ClassCritical},
	}
	for _, tc := range tests {
		if got := Classify(tc.score, th()); got != tc.want {
			t.Errorf("Classify(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestClassify_ConfiguredBounds(t *testing.T) {
	custom := th()
	custom.CriticalScore = 200
	custom.WarningScore = 40

	if got := Classify(50, custom); got != model.ClassWarning {
		t.Errorf("Classify(50) = %s, want warning", got)
	}
	if got := NewScorer(custom).Score(Input{Smart: smartRep(model.VerdictPassed, 61)}).Class; got != model.ClassCritical {
		t.Errorf("Scorer class = %s, want critical", got)
	}
}
