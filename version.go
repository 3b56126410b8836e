package scancore

// FunctionalityLevel is the highest database functionality level this
// version of the dispatcher and matcher supports.
//
// Packages declaring a higher level are rejected with [ESupport].
const FunctionalityLevel uint = 2

// Version is the library version.
const Version = "0.3.0"
