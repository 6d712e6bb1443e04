package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProfileMergeFirstWriteWins(t *testing.T) {
	ielts := 6.5
	otherIelts := 8.0
	budget := 50000.0
	yes := true
	no := false

	p := Profile{
		Gender:           "Nam",
		Certificates:     Certificates{IELTS: &ielts},
		NeedsScholarship: &no,
	}

	filled := p.Merge(Profile{
		Gender:           "Nữ",
		Email:            "a@example.com",
		EstimatedBudget:  &budget,
		NeedsScholarship: &yes,
		Certificates:     Certificates{IELTS: &otherIelts},
	})

	if p.Gender != "Nam" {
		t.Fatalf("gender overwritten: %q", p.Gender)
	}
	if *p.Certificates.IELTS != 6.5 {
		t.Fatalf("ielts overwritten: %v", *p.Certificates.IELTS)
	}
	if *p.NeedsScholarship {
		t.Fatal("needsScholarship overwritten")
	}
	if diff := cmp.Diff([]string{"email", "estimatedBudget"}, filled); diff != "" {
		t.Fatalf("filled fields mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileMergeCopiesPointers(t *testing.T) {
	toefl := 105
	var p Profile
	p.Merge(Profile{Certificates: Certificates{TOEFL: &toefl}})

	toefl = 80
	if *p.Certificates.TOEFL != 105 {
		t.Fatalf("merge aliased the source pointer: %d", *p.Certificates.TOEFL)
	}
}

func TestProfileIsEmpty(t *testing.T) {
	var p Profile
	if !p.IsEmpty() {
		t.Fatal("zero profile should be empty")
	}
	p.DreamMajor = "Computer Science"
	if p.IsEmpty() {
		t.Fatal("profile with a field should not be empty")
	}
}
