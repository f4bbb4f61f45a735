// Package monitor drives the device's supervisory state machine and records
// heart-rate samples into a storage segment while a recording is running.
//
// The machine only moves along the transitions listed in its table; any
// other event fails with ErrInvalidTransition and leaves the state alone.
//
//	Sleep      --Wake-->        Idle
//	Idle       --Measure-->     Normal
//	Normal     --StartRecord--> Record
//	Record     --StopRecord-->  Normal
//	Normal     --Send-->        SendPacket
//	Record     --Send-->        SendPacket
//	SendPacket --Sent-->        Normal
//	any awake  --Fault-->       Error
//	Error      --Reset-->       Idle
//	Idle, Normal, Error --Sleep--> Sleep
package monitor
