package domain

import "github.com/google/uuid"

// PositionId uniquely identifies a Position aggregate.
type PositionId uuid.UUID

// NewPositionId generates a new random position identity.
func NewPositionId() PositionId { return PositionId(uuid.New()) }

func (id PositionId) String() string { return uuid.UUID(id).String() }

// IsZero reports whether this is the unset identity.
func (id PositionId) IsZero() bool { return id == PositionId{} }

// PortfolioId uniquely identifies a Portfolio aggregate.
type PortfolioId uuid.UUID

// NewPortfolioId generates a new random portfolio identity.
func NewPortfolioId() PortfolioId { return PortfolioId(uuid.New()) }

func (id PortfolioId) String() string { return uuid.UUID(id).String() }

// OrderId identifies an order placed with the exchange (client-side).
type OrderId uuid.UUID

// NewOrderId generates a new random order identity.
func NewOrderId() OrderId { return OrderId(uuid.New()) }

func (id OrderId) String() string { return uuid.UUID(id).String() }

// IsZero reports whether this is the unset identity.
func (id OrderId) IsZero() bool { return id == OrderId{} }
