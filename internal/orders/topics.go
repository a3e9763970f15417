package orders

const (
	TopicOrderPlaced   = "order.placed"
	TopicLedgerFailed  = "order.ledger.failed"
	TopicStockReleased = "order.stock.released"
)

// PartitionKey keeps every event of one aggregate on one partition.
func PartitionKey(id string) []byte { return []byte(id) }
