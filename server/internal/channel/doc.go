// Package channel holds the static catalog of monitored sensor channels.
//
// A Descriptor names one physical quantity and carries the Rule used to
// classify its readings. A Rule is one of two variants:
//
//	Ranged{Min, Max}   status from position inside a continuous envelope
//	Binary{Match, ...} status from equality with one trigger value
//
// The catalog is built once at process start and never changes. Its order
// is the order every evaluated list is emitted in.
package channel
