package qlog

import (
	"time"

	"github.com/mithro/litepcie-go/logging"

	"github.com/francoispqt/gojay"
)

type category uint8

const (
	categoryLTSSM category = iota
	categoryLink
	categoryPhysical
)

func (c category) String() string {
	switch c {
	case categoryLTSSM:
		return "ltssm"
	case categoryLink:
		return "link"
	case categoryPhysical:
		return "physical"
	default:
		return "unknown"
	}
}

type eventDetails interface {
	Category() category
	Name() string
	gojay.MarshalerJSONObject
}

type event struct {
	RelativeTime time.Duration
	eventDetails
}

var _ gojay.MarshalerJSONObject = event{}

func (e event) IsNil() bool { return false }
func (e event) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Float64Key("time", float64(e.RelativeTime.Nanoseconds())/1e6)
	enc.StringKey("name", e.Category().String()+":"+e.Name())
	enc.ObjectKey("data", e.eventDetails)
}

type eventStateUpdated struct {
	From logging.State
	To   logging.State
}

var _ eventDetails = eventStateUpdated{}

func (e eventStateUpdated) Category() category { return categoryLTSSM }
func (e eventStateUpdated) Name() string       { return "state_updated" }
func (e eventStateUpdated) IsNil() bool        { return false }
func (e eventStateUpdated) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("old", e.From.String())
	enc.StringKey("new", e.To.String())
}

type eventLinkDown struct{}

var _ eventDetails = eventLinkDown{}

func (e eventLinkDown) Category() category                 { return categoryLTSSM }
func (e eventLinkDown) Name() string                       { return "link_down" }
func (e eventLinkDown) IsNil() bool                        { return false }
func (e eventLinkDown) MarshalJSONObject(_ *gojay.Encoder) {}

type eventPacketSent struct {
	Seq  logging.SequenceNumber
	Size logging.ByteCount
}

var _ eventDetails = eventPacketSent{}

func (e eventPacketSent) Category() category { return categoryLink }
func (e eventPacketSent) Name() string       { return "packet_sent" }
func (e eventPacketSent) IsNil() bool        { return false }
func (e eventPacketSent) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("seq", int64(e.Seq))
	enc.Int64Key("size", int64(e.Size))
}

type eventPacketReceived struct {
	Seq  logging.SequenceNumber
	Size logging.ByteCount
}

var _ eventDetails = eventPacketReceived{}

func (e eventPacketReceived) Category() category { return categoryLink }
func (e eventPacketReceived) Name() string       { return "packet_received" }
func (e eventPacketReceived) IsNil() bool        { return false }
func (e eventPacketReceived) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("seq", int64(e.Seq))
	enc.Int64Key("size", int64(e.Size))
}

type eventPacketDropped struct {
	Kind   logging.PacketKind
	Size   logging.ByteCount
	Reason logging.PacketDropReason
}

var _ eventDetails = eventPacketDropped{}

func (e eventPacketDropped) Category() category { return categoryLink }
func (e eventPacketDropped) Name() string       { return "packet_dropped" }
func (e eventPacketDropped) IsNil() bool        { return false }
func (e eventPacketDropped) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("kind", e.Kind.String())
	enc.Int64Key("size", int64(e.Size))
	enc.StringKey("trigger", e.Reason.String())
}

type eventDLLPSent struct {
	Type logging.DLLPType
	Seq  logging.SequenceNumber
}

var _ eventDetails = eventDLLPSent{}

func (e eventDLLPSent) Category() category { return categoryLink }
func (e eventDLLPSent) Name() string       { return "dllp_sent" }
func (e eventDLLPSent) IsNil() bool        { return false }
func (e eventDLLPSent) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("type", e.Type.String())
	enc.Int64Key("seq", int64(e.Seq))
}

type eventDLLPReceived struct {
	Type logging.DLLPType
	Seq  logging.SequenceNumber
}

var _ eventDetails = eventDLLPReceived{}

func (e eventDLLPReceived) Category() category { return categoryLink }
func (e eventDLLPReceived) Name() string       { return "dllp_received" }
func (e eventDLLPReceived) IsNil() bool        { return false }
func (e eventDLLPReceived) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("type", e.Type.String())
	enc.Int64Key("seq", int64(e.Seq))
}

type eventReplayStarted struct {
	From  logging.SequenceNumber
	Count int
}

var _ eventDetails = eventReplayStarted{}

func (e eventReplayStarted) Category() category { return categoryLink }
func (e eventReplayStarted) Name() string       { return "replay_started" }
func (e eventReplayStarted) IsNil() bool        { return false }
func (e eventReplayStarted) MarshalJSONObject(enc *gojay.Encoder) {
	enc.Int64Key("from", int64(e.From))
	enc.IntKey("count", e.Count)
}

type eventOrderedSetSent struct {
	Kind logging.OrderedSetKind
}

var _ eventDetails = eventOrderedSetSent{}

func (e eventOrderedSetSent) Category() category { return categoryPhysical }
func (e eventOrderedSetSent) Name() string       { return "ordered_set_sent" }
func (e eventOrderedSetSent) IsNil() bool        { return false }
func (e eventOrderedSetSent) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("kind", e.Kind.String())
}

type eventOrderedSetReceived struct {
	Kind logging.OrderedSetKind
}

var _ eventDetails = eventOrderedSetReceived{}

func (e eventOrderedSetReceived) Category() category { return categoryPhysical }
func (e eventOrderedSetReceived) Name() string       { return "ordered_set_received" }
func (e eventOrderedSetReceived) IsNil() bool        { return false }
func (e eventOrderedSetReceived) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("kind", e.Kind.String())
}

type eventUnknownOrderedSet struct{}

var _ eventDetails = eventUnknownOrderedSet{}

func (e eventUnknownOrderedSet) Category() category                 { return categoryPhysical }
func (e eventUnknownOrderedSet) Name() string                       { return "unknown_ordered_set" }
func (e eventUnknownOrderedSet) IsNil() bool                        { return false }
func (e eventUnknownOrderedSet) MarshalJSONObject(_ *gojay.Encoder) {}

type eventFramingError struct{}

var _ eventDetails = eventFramingError{}

func (e eventFramingError) Category() category                 { return categoryPhysical }
func (e eventFramingError) Name() string                       { return "framing_error" }
func (e eventFramingError) IsNil() bool                        { return false }
func (e eventFramingError) MarshalJSONObject(_ *gojay.Encoder) {}
