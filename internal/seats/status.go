package seats

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	StatusBooked    Status = "BOOKED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusBooked:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
