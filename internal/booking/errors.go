package booking

import "net/http"

// Wire codes for business-rule and write failures. Client-input codes
// live in the validate package.
const (
	CodeSlotNotFound         = "SLOT_NOT_FOUND"
	CodeSlotFull             = "SLOT_FULL"
	CodeServiceNotFound      = "SERVICE_NOT_FOUND"
	CodeServiceDuplicate     = "SERVICE_DUPLICATE"
	CodeServiceFull          = "SERVICE_FULL"
	CodeCreateFailed         = "CREATE_FAILED"
	CodeCapacityUpdateFailed = "CAPACITY_UPDATE_FAILED"
	CodeMissingEnv           = "MISSING_ENV"
	CodeStoreError           = "STORE_ERROR"
	CodeInternal             = "INTERNAL"
)

// Failure is a typed booking failure carrying the wire code and HTTP
// status the API layer should answer with.
type Failure struct {
	Code   string
	Status int
	Msg    string
}

func (f *Failure) Error() string {
	if f.Msg != "" {
		return f.Code + ": " + f.Msg
	}
	return f.Code
}

func failSlotNotFound() error {
	return &Failure{Code: CodeSlotNotFound, Status: http.StatusConflict, Msg: "slot closed or not configured"}
}

func failSlotFull() error {
	return &Failure{Code: CodeSlotFull, Status: http.StatusConflict, Msg: "not enough seats"}
}

func failServiceNotFound() error {
	return &Failure{Code: CodeServiceNotFound, Status: http.StatusUnprocessableEntity, Msg: "no service configured for this date and time"}
}

func failServiceDuplicate() error {
	return &Failure{Code: CodeServiceDuplicate, Status: http.StatusUnprocessableEntity, Msg: "ambiguous service configuration"}
}

func failServiceFull() error {
	return &Failure{Code: CodeServiceFull, Status: http.StatusUnprocessableEntity, Msg: "service is full"}
}

func failCreate() error {
	return &Failure{Code: CodeCreateFailed, Status: http.StatusInternalServerError, Msg: "could not create booking"}
}

func failCapacityUpdate() error {
	return &Failure{Code: CodeCapacityUpdateFailed, Status: http.StatusInternalServerError, Msg: "could not update capacity"}
}

func failStore(msg string) error {
	if msg == "" {
		msg = "external store error"
	}
	return &Failure{Code: CodeStoreError, Status: http.StatusInternalServerError, Msg: msg}
}
