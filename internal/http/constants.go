package httpx

// Page identifiers. Each names a template under pages/.
const (
	PageHome         = "home"
	PageLogin        = "login"
	PageSignup       = "signup"
	PageAccessDenied = "access-denied"
	PageError        = "error"

	PagePatients    = "patients"
	PagePatient     = "patient"
	PagePatientForm = "patient-form"

	PageVisits     = "visits"
	PageVisit      = "visit"
	PageVisitForm  = "visit-form"
	PageAdmissions = "admissions"

	PageExams    = "exams"
	PageExamForm = "exam-form"

	PageVerify = "verify"
)

// pageTitles holds the default <title> for each page.
var pageTitles = map[string]string{
	PageHome:         "Ward console",
	PageLogin:        "Sign in",
	PageSignup:       "Create account",
	PageAccessDenied: "Access denied",
	PageError:        "Something went wrong",
	PagePatients:     "Patients",
	PagePatient:      "Patient",
	PagePatientForm:  "Patient",
	PageVisits:       "Visits",
	PageVisit:        "Visit",
	PageVisitForm:    "Admit patient",
	PageAdmissions:   "Admissions",
	PageExams:        "Exam templates",
	PageExamForm:     "Exam template",
	PageVerify:       "Certificate verification",
}

const (
	errMsgFixBelow        = "Please fix the errors below."
	errMsgInvalidLogin    = "Invalid email or password."
	errMsgProviderDown    = "The identity service is unavailable. Try again shortly."
	noticeAccountCreated  = "Account created. Sign in to continue."
	noticeSignedOut       = "You have been signed out."
	defaultListLimit      = 50
	maxListLimit          = 200
	loginRedirectParam    = "redirect_uri"
	formFieldEmail        = "email"
	formFieldPassword     = "password"
	formFieldConfirmation = "password_confirmation"
)
