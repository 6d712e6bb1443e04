package domain

// Certificates holds language test results.
type Certificates struct {
	IELTS    *float64 `json:"ielts,omitempty"`
	TOEFL    *int     `json:"toefl,omitempty"`
	Duolingo *int     `json:"duolingo,omitempty"`
	TestDaF  string   `json:"testDaf,omitempty"`
}

// Profile is the structured, partially-filled set of facts about the user.
// Empty strings and nil pointers mean "not yet known".
type Profile struct {
	FullName                      string       `json:"fullname,omitempty"`
	Email                         string       `json:"email,omitempty"`
	Phone                         string       `json:"phone,omitempty"`
	Gender                        string       `json:"gender,omitempty"`
	DateOfBirth                   string       `json:"dateOfBirth,omitempty"`
	PassportNumber                string       `json:"passportNumber,omitempty"`
	CurrentCountry                string       `json:"currentCountry,omitempty"`
	CurrentEducationLevel         string       `json:"currentEducationLevel,omitempty"`
	AcademicResult                string       `json:"academicResult,omitempty"`
	DesiredEducationLevel         string       `json:"desiredEducationLevel,omitempty"`
	CareerGoal                    string       `json:"careerGoal,omitempty"`
	ExtracurricularsAndExperience string       `json:"extracurricularsAndExperience,omitempty"`
	EstimatedBudget               *float64     `json:"estimatedBudget,omitempty"`
	FundingSource                 string       `json:"fundingSource,omitempty"`
	NeedsScholarship              *bool        `json:"needsScholarship,omitempty"`
	Certificates                  Certificates `json:"certificates"`
	StudyLanguage                 string       `json:"studyLanguage,omitempty"`
	IntendedIntakeTime            string       `json:"intendedIntakeTime,omitempty"`
	CurrentProgress               string       `json:"currentProgress,omitempty"`
	DreamMajor                    string       `json:"dreamMajor,omitempty"`
	PreferredStudyCountry         string       `json:"preferredStudyCountry,omitempty"`
	SchoolSelectionCriteria       string       `json:"schoolSelectionCriteria,omitempty"`
}

// Merge copies every field that is set in update and still unset in p.
// A field that already holds a value is never overwritten.
// It returns the JSON names of the fields that were filled.
func (p *Profile) Merge(update Profile) []string {
	var filled []string
	str := func(dst *string, src, name string) {
		if *dst == "" && src != "" {
			*dst = src
			filled = append(filled, name)
		}
	}

	str(&p.FullName, update.FullName, "fullname")
	str(&p.Email, update.Email, "email")
	str(&p.Phone, update.Phone, "phone")
	str(&p.Gender, update.Gender, "gender")
	str(&p.DateOfBirth, update.DateOfBirth, "dateOfBirth")
	str(&p.PassportNumber, update.PassportNumber, "passportNumber")
	str(&p.CurrentCountry, update.CurrentCountry, "currentCountry")
	str(&p.CurrentEducationLevel, update.CurrentEducationLevel, "currentEducationLevel")
	str(&p.AcademicResult, update.AcademicResult, "academicResult")
	str(&p.DesiredEducationLevel, update.DesiredEducationLevel, "desiredEducationLevel")
	str(&p.CareerGoal, update.CareerGoal, "careerGoal")
	str(&p.ExtracurricularsAndExperience, update.ExtracurricularsAndExperience, "extracurricularsAndExperience")
	str(&p.FundingSource, update.FundingSource, "fundingSource")
	str(&p.StudyLanguage, update.StudyLanguage, "studyLanguage")
	str(&p.IntendedIntakeTime, update.IntendedIntakeTime, "intendedIntakeTime")
	str(&p.CurrentProgress, update.CurrentProgress, "currentProgress")
	str(&p.DreamMajor, update.DreamMajor, "dreamMajor")
	str(&p.PreferredStudyCountry, update.PreferredStudyCountry, "preferredStudyCountry")
	str(&p.SchoolSelectionCriteria, update.SchoolSelectionCriteria, "schoolSelectionCriteria")
	str(&p.Certificates.TestDaF, update.Certificates.TestDaF, "certificates.testDaf")

	if p.EstimatedBudget == nil && update.EstimatedBudget != nil {
		v := *update.EstimatedBudget
		p.EstimatedBudget = &v
		filled = append(filled, "estimatedBudget")
	}
	if p.NeedsScholarship == nil && update.NeedsScholarship != nil {
		v := *update.NeedsScholarship
		p.NeedsScholarship = &v
		filled = append(filled, "needsScholarship")
	}
	if p.Certificates.IELTS == nil && update.Certificates.IELTS != nil {
		v := *update.Certificates.IELTS
		p.Certificates.IELTS = &v
		filled = append(filled, "certificates.ielts")
	}
	if p.Certificates.TOEFL == nil && update.Certificates.TOEFL != nil {
		v := *update.Certificates.TOEFL
		p.Certificates.TOEFL = &v
		filled = append(filled, "certificates.toefl")
	}
	if p.Certificates.Duolingo == nil && update.Certificates.Duolingo != nil {
		v := *update.Certificates.Duolingo
		p.Certificates.Duolingo = &v
		filled = append(filled, "certificates.duolingo")
	}

	return filled
}

// IsEmpty reports whether no field of the profile is set.
func (p *Profile) IsEmpty() bool {
	var blank Profile
	return len(blank.Merge(*p)) == 0
}
