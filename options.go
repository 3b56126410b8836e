package scancore

// ScanOptions selects which container and content families the dispatcher
// may descend into, and which policy toggles apply.
//
// A ScanOptions value is read-only for the duration of a scan.
type ScanOptions uint32

// Scan option bits.
const (
	ScanRaw                   ScanOptions = 0
	ScanArchive               ScanOptions = 1 << 0
	ScanMail                  ScanOptions = 1 << 1
	ScanOLE2                  ScanOptions = 1 << 2
	ScanBlockEncrypted        ScanOptions = 1 << 3
	ScanHTML                  ScanOptions = 1 << 4
	ScanPE                    ScanOptions = 1 << 5
	ScanBlockBroken           ScanOptions = 1 << 6
	ScanAlgorithmic           ScanOptions = 1 << 9
	ScanELF                   ScanOptions = 1 << 13
	ScanPDF                   ScanOptions = 1 << 14
	ScanStructured            ScanOptions = 1 << 15
	ScanStructuredSSNNormal   ScanOptions = 1 << 16
	ScanStructuredSSNStripped ScanOptions = 1 << 17
	ScanPartialMessage        ScanOptions = 1 << 18
	ScanHeuristicPrecedence   ScanOptions = 1 << 19
	// ScanAllMatches keeps walking after the first detection and reports
	// every label found.
	ScanAllMatches ScanOptions = 1 << 20

	ScanStdOptions = ScanArchive | ScanMail | ScanOLE2 | ScanPDF | ScanHTML | ScanPE | ScanAlgorithmic | ScanELF
)

// Has reports whether all the bits in "o" are set.
func (s ScanOptions) Has(o ScanOptions) bool { return s&o == o }

// DBOptions are flags for loading a database.
type DBOptions uint32

// Database load option bits.
const (
	// DBPUA enables loading "potentially unwanted" signatures.
	DBPUA DBOptions = 1 << 4
	// DBNoTempFile extracts package bodies in memory instead of spooling them
	// to temporary storage.
	DBNoTempFile DBOptions = 1 << 5
	// DBOfficial only loads signed packages; raw record files are skipped.
	DBOfficial DBOptions = 1 << 6
	// DBPUAMode marks that one of DBPUAInclude or DBPUAExclude is in effect.
	DBPUAMode    DBOptions = 1 << 7
	DBPUAInclude DBOptions = 1 << 8
	DBPUAExclude DBOptions = 1 << 9

	DBStdOptions DBOptions = 0
)

// Has reports whether all the bits in "o" are set.
func (d DBOptions) Has(o DBOptions) bool { return d&o == o }
