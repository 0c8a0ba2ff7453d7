//go:build !darwin || !cgo

package permissions

// CheckMicrophone reports Authorized where the OS has no capture prompt.
func CheckMicrophone() Status {
	return Authorized
}

func RequestMicrophone() {}
