package scancore

// Code is a public outcome code.
//
// Non-negative values are verdicts; negative values are errors. Every Code
// has exactly one human-readable text, returned by [Code.String].
type Code int

// Outcome codes.
const (
	Clean   Code = 0 // no virus found
	Virus   Code = 1 // virus(es) found
	Success      = Clean
	Break   Code = 2

	EMaxRec    Code = -100 // recursion limit exceeded
	EMaxSize   Code = -101 // size limit exceeded
	EMaxFiles  Code = -102 // files limit exceeded
	ERar       Code = -103 // rar handler error
	EZip       Code = -104 // zip handler error
	EGzip      Code = -105 // gzip handler error
	EBzip      Code = -106 // bzip2 handler error
	EOLE2      Code = -107 // OLE2 handler error
	EMSComp    Code = -108 // MS Expand handler error
	EMSCab     Code = -109 // MS CAB module error
	EAccess    Code = -110 // access denied
	ENullArg   Code = -111 // null argument
	ETmpFile   Code = -112 // temporary file creation failed
	EMem       Code = -114 // memory allocation error
	EOpen      Code = -115 // file open error
	EMalfDB    Code = -116 // malformed database
	EPatShort  Code = -117 // pattern too short
	ETmpDir    Code = -118 // temporary directory creation failed
	ECVD       Code = -119 // not a database package (or broken)
	ECVDExtr   Code = -120 // database package extraction failure
	EMD5       Code = -121 // checksum verification error
	EDSig      Code = -122 // digital signature verification error
	EIO        Code = -123 // general I/O error
	EFormat    Code = -124 // bad format or broken file
	ESupport   Code = -125 // not supported data format
	EArg       Code = -126 // invalid argument
	EArj       Code = -127 // ARJ handler error
	EEncrypted Code = -128 // encrypted content blocked
)

var codeText = map[Code]string{
	Clean:      "No viruses detected",
	Virus:      "Virus(es) detected",
	Break:      "Scan interrupted",
	EMaxRec:    "Recursion limit exceeded",
	EMaxSize:   "Size limit exceeded",
	EMaxFiles:  "Files number limit exceeded",
	ERar:       "RAR module failure",
	EZip:       "Zip module failure",
	EGzip:      "GZip module failure",
	EBzip:      "BZip2 module failure",
	EOLE2:      "OLE2 module failure",
	EMSComp:    "MS Expand module failure",
	EMSCab:     "MS CAB module failure",
	EAccess:    "Access denied",
	ENullArg:   "Null argument passed to function",
	ETmpFile:   "Unable to create temporary file",
	EMem:       "Unable to allocate memory",
	EOpen:      "Unable to open file or directory",
	EMalfDB:    "Malformed database",
	EPatShort:  "Too short pattern detected",
	ETmpDir:    "Unable to create temporary directory",
	ECVD:       "Broken or not a database package",
	ECVDExtr:   "Unable to extract database package",
	EMD5:       "Checksum verification error",
	EDSig:      "Digital signature verification error",
	EIO:        "General I/O error",
	EFormat:    "Bad format or broken data",
	ESupport:   "Unsupported data format",
	EArg:       "Invalid argument passed to function",
	EArj:       "ARJ module failure",
	EEncrypted: "Encrypted content blocked",
}

// String implements [fmt.Stringer].
func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return "Unknown error code"
}

// Error implements error, so that a Code can be used as an [errors.Is] target.
func (c Code) Error() string { return c.String() }

// StrError returns the text for the code.
func StrError(c Code) string { return c.String() }

// Kind reports the error class the code belongs to.
//
// Verdicts report the empty kind.
func (c Code) Kind() ErrorKind {
	switch c {
	case Clean, Virus, Break:
		return ""
	case EMaxRec, EMaxSize, EMaxFiles:
		return ErrLimit
	case ERar, EZip, EGzip, EBzip, EOLE2, EMSComp, EMSCab, EArj, EFormat, EEncrypted:
		return ErrFormat
	case EMalfDB, EPatShort, ECVD, ECVDExtr, EMD5, EDSig, ESupport:
		return ErrIntegrity
	case EAccess, ETmpFile, EMem, EOpen, ETmpDir, EIO:
		return ErrEnvironment
	case ENullArg, EArg:
		return ErrInvalid
	}
	return ErrInternal
}

// IsLimit reports whether the code is one of the resource-bound aborts.
//
// These never indicate maliciousness; the object was too large or too complex
// to scan completely.
func (c Code) IsLimit() bool {
	return c.Kind() == ErrLimit
}
