package extract

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/duhoc-advisor/internal/domain"
)

func fixedEngine() *Engine {
	return NewWithClock(func() time.Time {
		return time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	})
}

func TestBudgetMultipliers(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"Ngân sách khoảng 50k USD", 50000},
		{"Gia đình có 2 triệu VND mỗi tháng", 2000000},
		{"budget 1,500 dollars", 1500},
		{"khoảng 1.500.000 VND", 1500000},
		{"2,5 tỷ đồng", 2.5e9},
		{"30 thousand usd", 30000},
	}
	e := fixedEngine()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := e.Extract(tt.in)
			require.NotNil(t, p.EstimatedBudget)
			assert.Equal(t, tt.want, *p.EstimatedBudget)
		})
	}
}

func TestBudgetIgnoresCurrencyLookalikes(t *testing.T) {
	e := fixedEngine()
	for _, in := range []string{
		"Em làm việc cùng 3 đồng nghiệp",
		"Có 2 đồng ý kiến khác nhau",
		"Mua 5 usdt",
	} {
		p := e.Extract(in)
		assert.Nil(t, p.EstimatedBudget, in)
	}

	p := e.Extract("3 đồng nghiệp góp 50 triệu đồng")
	require.NotNil(t, p.EstimatedBudget)
	assert.Equal(t, 50e6, *p.EstimatedBudget)
}

func TestApplyNeverOverwrites(t *testing.T) {
	p := domain.Profile{Gender: "Nam"}
	filled := fixedEngine().Apply("tôi là nữ", &p)

	assert.Equal(t, "Nam", p.Gender)
	assert.Empty(t, filled)
}

func TestGender(t *testing.T) {
	e := fixedEngine()
	assert.Equal(t, "Nữ", e.Extract("I am female").Gender)
	assert.Equal(t, "Nam", e.Extract("Tôi là nam").Gender)

	p := e.Extract("Tôi đến từ Việt Nam")
	assert.Empty(t, p.Gender)
	assert.Equal(t, "Việt Nam", p.CurrentCountry)
}

func TestAcademicResultAndCertificates(t *testing.T) {
	e := fixedEngine()

	p := e.Extract("Tôi có GPA 3.8, TOEFL 105")
	assert.Equal(t, "GPA 3.8", p.AcademicResult)
	require.NotNil(t, p.Certificates.TOEFL)
	assert.Equal(t, 105, *p.Certificates.TOEFL)

	p = e.Extract("GPA: 3.5/4.0, IELTS 7.5, Duolingo 125")
	assert.Equal(t, "GPA 3.5/4.0", p.AcademicResult)
	require.NotNil(t, p.Certificates.IELTS)
	assert.Equal(t, 7.5, *p.Certificates.IELTS)
	require.NotNil(t, p.Certificates.Duolingo)
	assert.Equal(t, 125, *p.Certificates.Duolingo)

	assert.Equal(t, "Điểm 8.5/10", e.Extract("điểm 8.5/10").AcademicResult)
	assert.Equal(t, "TDN 4", e.Extract("TestDaF TDN 4").Certificates.TestDaF)
}

func TestCertificateBounds(t *testing.T) {
	p := fixedEngine().Extract("TOEFL 150, Duolingo 170")
	assert.Nil(t, p.Certificates.TOEFL)
	assert.Nil(t, p.Certificates.Duolingo)
}

func TestBirthDate(t *testing.T) {
	e := fixedEngine()
	assert.Equal(t, "2006-01-01", e.Extract("Em năm nay 20 tuổi").DateOfBirth)
	assert.Equal(t, "2004-01-01", e.Extract("I am 22 years old").DateOfBirth)

	p := e.Extract("Tôi sinh năm 2002")
	assert.Equal(t, "2002-01-01", p.DateOfBirth)
	assert.Empty(t, p.IntendedIntakeTime, "a birth year is not an intake")
}

func TestContactDetails(t *testing.T) {
	p := fixedEngine().Extract("Email: an.nguyen@example.com, SĐT 0912 345 678")
	assert.Equal(t, "an.nguyen@example.com", p.Email)
	assert.Equal(t, "0912345678", p.Phone)
}

func TestPassport(t *testing.T) {
	e := fixedEngine()
	assert.Equal(t, "C1234567", e.Extract("Hộ chiếu số c1234567").PassportNumber)
	assert.Equal(t, "B1234567", e.Extract("Số hộ chiếu của tôi là B1234567").PassportNumber)
}

func TestIntakeFamilies(t *testing.T) {
	e := fixedEngine()
	assert.Equal(t, "Fall 2027", e.Extract("Em dự định nhập học Fall 2027").IntendedIntakeTime)
	assert.Equal(t, "Tháng 9/2027", e.Extract("nhập học tháng 9/2027").IntendedIntakeTime)
	assert.Equal(t, "Tháng 1/2027", e.Extract("tháng 1 năm 2027").IntendedIntakeTime)
	assert.Equal(t, "Năm 2027", e.Extract("khoảng năm 2027").IntendedIntakeTime)
}

func TestProgressSummaryTruncated(t *testing.T) {
	msg := "Em đã nộp hồ sơ " + strings.Repeat("và đang chờ phản hồi ", 10)
	p := fixedEngine().Extract(msg)
	assert.Equal(t, 100, utf8.RuneCountInString(p.CurrentProgress))
	assert.True(t, strings.HasPrefix(p.CurrentProgress, "Em đã nộp"))
}

func TestSchoolAliasInfersCountry(t *testing.T) {
	e := fixedEngine()

	p := e.Extract("Tôi thích stanford và ngành computer science")
	assert.Equal(t, "Stanford University", p.SchoolSelectionCriteria)
	assert.Equal(t, "Hoa Kỳ", p.PreferredStudyCountry)
	assert.Equal(t, "Khoa học máy tính", p.DreamMajor)

	p = e.Extract("Em muốn vào University of Toronto")
	assert.Equal(t, "University of Toronto", p.SchoolSelectionCriteria)
	assert.Empty(t, p.PreferredStudyCountry)
}

func TestScholarshipNeed(t *testing.T) {
	e := fixedEngine()

	p := e.Extract("Em cần học bổng")
	require.NotNil(t, p.NeedsScholarship)
	assert.True(t, *p.NeedsScholarship)

	p = e.Extract("Em không cần học bổng")
	require.NotNil(t, p.NeedsScholarship)
	assert.False(t, *p.NeedsScholarship)

	assert.Nil(t, e.Extract("Xin chào").NeedsScholarship)
}

func TestExtractionIsTotal(t *testing.T) {
	e := fixedEngine()
	for _, text := range []string{"", "   ", "xin chào"} {
		p := e.Extract(text)
		assert.True(t, p.IsEmpty(), "%q", text)
	}
	assert.Nil(t, e.Apply("GPA 3.2", nil))
}
