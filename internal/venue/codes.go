package venue

// Error codes surfaced on the venue's error callback, following the
// broker's numbering.
const (
	// CodeOrderRejected means the venue refused the order outright.
	CodeOrderRejected int32 = 201
	// CodeOrderCancelled confirms a cancel was processed. Benign when the
	// engine issued the cancel itself, a real error otherwise.
	CodeOrderCancelled int32 = 202
	// CodeIdentityInUse means the client id is held by another session.
	CodeIdentityInUse int32 = 326

	// Transport-class errors: the session recovers from these by
	// reconnecting.
	CodeCannotConnect    int32 = 502
	CodePortInUse        int32 = 503
	CodeNotConnected     int32 = 504
	CodeConnectivityLost int32 = 1100
	CodeUpstreamBroken   int32 = 2110

	// Informational farm-status notices, never errors.
	CodeMarketFarmOK int32 = 2104
	CodeHistFarmOK   int32 = 2106
	CodeSecDefFarmOK int32 = 2158
)
