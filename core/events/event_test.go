package events

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type captureEmitter struct {
	events []Event
}

func (c *captureEmitter) Emit(evt Event) { c.events = append(c.events, evt) }

func TestBufferTruncateAndFlush(t *testing.T) {
	var buf Buffer
	buf.Emit(Staked{Account: common.HexToAddress("0x01"), Amount: big.NewInt(1)})
	mark := buf.Len()
	buf.Emit(Staked{Account: common.HexToAddress("0x02"), Amount: big.NewInt(2)})
	buf.Emit(nil)
	if buf.Len() != 2 {
		t.Fatalf("expected 2 buffered events, got %d", buf.Len())
	}
	buf.Truncate(mark)
	if buf.Len() != 1 {
		t.Fatalf("expected truncate to keep 1 event, got %d", buf.Len())
	}

	sink := &captureEmitter{}
	buf.Flush(sink)
	if len(sink.events) != 1 || buf.Len() != 0 {
		t.Fatalf("unexpected flush result: delivered=%d remaining=%d", len(sink.events), buf.Len())
	}
	if got := sink.events[0].(Staked).Amount.Int64(); got != 1 {
		t.Fatalf("flushed the wrong event: amount %d", got)
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &captureEmitter{}, &captureEmitter{}
	Fanout{a, nil, b}.Emit(AuthorityRotated{Next: common.HexToAddress("0x03")})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both emitters to receive the event")
	}
}

func TestUnstakedEventAttributes(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	adminPath := Unstaked{Account: account, Amount: big.NewInt(40), Via: ViaAdministrator}.Event()
	if _, ok := adminPath.Attributes["digest"]; ok {
		t.Fatalf("administrator unstake must not carry a digest")
	}
	if !strings.HasPrefix(adminPath.Attr("account"), "stk1") {
		t.Fatalf("expected bech32 account, got %q", adminPath.Attr("account"))
	}

	digest := common.HexToHash("0x1234")
	signed := Unstaked{Account: account, Amount: big.NewInt(40), Via: ViaSigned, Digest: digest}.Event()
	if signed.Attr("digest") != digest.Hex() || signed.Attr("via") != ViaSigned {
		t.Fatalf("unexpected signed attributes: %v", signed.Attributes)
	}
	if signed.Attr("amount") != "40" {
		t.Fatalf("unexpected amount %q", signed.Attr("amount"))
	}
}

func TestAuthorityRotatedOmitsZeroPrevious(t *testing.T) {
	evt := AuthorityRotated{Next: common.HexToAddress("0x05")}.Event()
	if _, ok := evt.Attributes["previous"]; ok {
		t.Fatalf("unexpected previous attribute")
	}
	if evt.Type != TypeAuthorityRotated {
		t.Fatalf("unexpected type %s", evt.Type)
	}
}
