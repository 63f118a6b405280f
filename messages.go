package server

// diagnosticsPlayer is the per-seat entry served by /diagnostics.
type diagnosticsPlayer struct {
	ID            string `json:"id"`
	Team          int    `json:"team"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
	LastAck       uint64 `json:"lastAck"`
}

// diagnosticsRoom summarises one live room.
type diagnosticsRoom struct {
	ID        string              `json:"id"`
	Tick      uint64              `json:"tick"`
	Seats     int                 `json:"seats"`
	Players   []diagnosticsPlayer `json:"players"`
	Telemetry telemetrySnapshot   `json:"telemetry"`
}
