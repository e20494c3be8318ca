package kdf

// commonSecrets is a minimal blocklist of passwords that pass the length
// check but are trivially guessable. Matching is case-insensitive.
var commonSecrets = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwertyuiop":  {},
	"qwerty123":   {},
	"iloveyou":    {},
	"letmein1":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"superman":    {},
	"trustno1":    {},
	"welcome1":    {},
	"admin123":    {},
	"changeme":    {},
	"dragon123":   {},
	"monkey123":   {},
	"abc12345":    {},
	"11111111":    {},
	"00000000":    {},
}
