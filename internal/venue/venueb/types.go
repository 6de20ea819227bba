package venueb

// wsCommand is the wire frame for subscribe/unsubscribe commands.
type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Assets  []string `json:"asset_ids"`
}

// envelope carries just enough of the outer shape to route the message.
type envelope struct {
	MsgType string `json:"msg_type"`
	Event   string `json:"event_type"`
}

// priceChangeMessage carries a decimal [0,1] price for one outcome token.
type priceChangeMessage struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
}
