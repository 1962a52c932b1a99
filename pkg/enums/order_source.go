package enums

// OrderSource records where an order was first accepted.
type OrderSource string

const (
	// OrderSourceRemote orders were accepted by the orders service.
	OrderSourceRemote OrderSource = "remote"
	// OrderSourceLocal orders were written locally while the orders service was unreachable.
	OrderSourceLocal OrderSource = "local"
)

func (s OrderSource) String() string {
	return string(s)
}
