// Package contract drives a resource handler through the asynchronous
// progress protocol and checks each exchange against the handler contract.
//
// A handler is reached through a Transport. Client.CallAndAssert sends one
// request, keeps polling while the handler reports IN_PROGRESS (forwarding
// its callback context and honouring its callback delay), and fails with a
// *ContractError when the terminal status is not the expected one, when an
// event is malformed, or when the enforce timeout expires.
//
// State machine of one operation:
//
//	PENDING -> IN_PROGRESS* -> SUCCESS | FAILED
//
// The wire value COMPLETE is accepted as SUCCESS.
package contract
