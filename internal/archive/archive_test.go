package archive

import (
	"testing"
)

func TestIsArchiveMemberRecognizesFamilies(t *testing.T) {
	cases := map[string]bool{
		"release.rar":       true,
		"release.r00":       true,
		"release.r01":       true,
		"release.part01.rar": true,
		"release.7z":        true,
		"release.7z.001":    true,
		"release.zip":       true,
		"release.z01":       true,
		"release.001":       true,
		"release.nfo":       false,
		"release.mkv":       false,
		"release.par2":      false,
	}
	for name, want := range cases {
		if got := IsArchiveMember(name); got != want {
			t.Errorf("IsArchiveMember(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsParityMemberRecognizesPar2Family(t *testing.T) {
	if !IsParityMember("release.par2") {
		t.Errorf("expected release.par2 to be recognized as parity")
	}
	if !IsParityMember("release.vol000+01.par2") {
		t.Errorf("expected volume-numbered par2 to be recognized as parity")
	}
	if IsParityMember("release.rar") {
		t.Errorf("expected release.rar to not be recognized as parity")
	}
}

func TestGroupSetsGroupsRarPartVolumesTogether(t *testing.T) {
	names := []string{"movie.part01.rar", "movie.part02.rar", "movie.part03.rar", "movie.nfo"}
	sizes := map[string]int64{"movie.part01.rar": 100, "movie.part02.rar": 100, "movie.part03.rar": 50}

	sets := GroupSets(names, sizes)
	if len(sets) != 1 {
		t.Fatalf("expected 1 set, got %d: %+v", len(sets), sets)
	}
	set := sets[0]
	if set.Family != FamilyRarVolumes {
		t.Errorf("expected FamilyRarVolumes, got %s", set.Family)
	}
	if set.FirstMember != "movie.part01.rar" {
		t.Errorf("expected first member movie.part01.rar, got %s", set.FirstMember)
	}
	if set.TotalBytes != 250 {
		t.Errorf("expected total bytes 250, got %d", set.TotalBytes)
	}
	if set.Incomplete {
		t.Errorf("expected complete set")
	}
}

func TestGroupSetsDetectsMissingMiddlePart(t *testing.T) {
	names := []string{"movie.part01.rar", "movie.part03.rar"}
	sizes := map[string]int64{"movie.part01.rar": 100, "movie.part03.rar": 100}

	sets := GroupSets(names, sizes)
	if len(sets) != 1 {
		t.Fatalf("expected 1 set, got %d", len(sets))
	}
	if !sets[0].Incomplete {
		t.Errorf("expected set missing part02 to be flagged incomplete")
	}
}

func TestGroupSetsOldStyleRarVolumesGroupTogether(t *testing.T) {
	names := []string{"release.rar", "release.r00", "release.r01"}
	sizes := map[string]int64{"release.rar": 100, "release.r00": 100, "release.r01": 100}

	sets := GroupSets(names, sizes)
	if len(sets) != 1 {
		t.Fatalf("expected 1 set, got %d: %+v", len(sets), sets)
	}
	if sets[0].FirstMember != "release.rar" {
		t.Errorf("expected first member release.rar, got %s", sets[0].FirstMember)
	}
	if len(sets[0].Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(sets[0].Members))
	}
}

func TestGroupSetsSingleFileArchiveIsItsOwnSet(t *testing.T) {
	names := []string{"cover.zip"}
	sizes := map[string]int64{"cover.zip": 10}

	sets := GroupSets(names, sizes)
	if len(sets) != 1 {
		t.Fatalf("expected 1 set, got %d", len(sets))
	}
	if sets[0].Family != FamilySingle {
		t.Errorf("expected FamilySingle, got %s", sets[0].Family)
	}
	if sets[0].Incomplete {
		t.Errorf("a single-file archive is never incomplete")
	}
}

func TestGroupSetsTwoDistinctReleasesDoNotCollide(t *testing.T) {
	names := []string{"alpha.part01.rar", "alpha.part02.rar", "beta.part01.rar", "beta.part02.rar"}
	sizes := map[string]int64{"alpha.part01.rar": 10, "alpha.part02.rar": 10, "beta.part01.rar": 10, "beta.part02.rar": 10}

	sets := GroupSets(names, sizes)
	if len(sets) != 2 {
		t.Fatalf("expected 2 distinct sets, got %d: %+v", len(sets), sets)
	}
}
