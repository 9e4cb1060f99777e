package service

import (
	"testing"
	"time"

	"shekkle/models"

	"github.com/stretchr/testify/mock"
)

// Test utilities

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() Option {
	return WithClock(func() time.Time { return testNow })
}

// ledgerMocks bundles a mocked unit of work with its repositories
type ledgerMocks struct {
	factory   *MockUnitOfWorkFactory
	uow       *MockUnitOfWork
	userRepo  *MockUserRepository
	betRepo   *MockBetRepository
	wagerRepo *MockWagerRepository
	bus       *MockEventPublisher
}

func newLedgerMocks() *ledgerMocks {
	m := &ledgerMocks{
		factory:   new(MockUnitOfWorkFactory),
		uow:       new(MockUnitOfWork),
		userRepo:  new(MockUserRepository),
		betRepo:   new(MockBetRepository),
		wagerRepo: new(MockWagerRepository),
		bus:       new(MockEventPublisher),
	}

	m.uow.SetRepositories(m.userRepo, m.betRepo, m.wagerRepo)
	m.uow.SetEventBus(m.bus)
	m.factory.On("Create").Return(m.uow)
	m.bus.On("Publish", mock.Anything).Return()

	return m
}

func (m *ledgerMocks) assertExpectations(t *testing.T) {
	assertAllMockExpectations(t, m.factory, m.uow, m.userRepo, m.betRepo, m.wagerRepo)
}

func createTestUser(userID int64, balance int64) *models.User {
	return &models.User{
		TelegramID: userID,
		Username:   "testuser",
		Balance:    balance,
		CreatedAt:  testNow.Add(-48 * time.Hour),
	}
}

func createTestBet(betID int64, status models.BetStatus) *models.Bet {
	return &models.Bet{
		ID:          betID,
		CreatorID:   999999,
		Description: "Will it rain tomorrow?",
		OptionA:     "Yes",
		OptionB:     "No",
		Deadline:    testNow.Add(time.Hour),
		Status:      status,
		CreatedAt:   testNow.Add(-time.Hour),
	}
}

func createTestWager(id, betID, userID int64, choice models.Outcome, amount int64) *models.Wager {
	return &models.Wager{
		ID:       id,
		BetID:    betID,
		UserID:   userID,
		Choice:   choice,
		Amount:   amount,
		PlacedAt: testNow.Add(-30 * time.Minute),
		Username: "testuser",
	}
}

// Mock helper functions

func setupBasicTransactionMocks(mockUoW *MockUnitOfWork) {
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)
}

// setupRejectedTransactionMocks expects a transaction that never commits
func setupRejectedTransactionMocks(mockUoW *MockUnitOfWork) {
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)
}

func setupReadOnlyTransactionMocks(mockUoW *MockUnitOfWork) {
	mockUoW.On("BeginReadOnly", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)
}

func assertAllMockExpectations(t *testing.T, mocks ...interface{}) {
	for _, m := range mocks {
		if mockObj, ok := m.(interface{ AssertExpectations(mock.TestingT) bool }); ok {
			mockObj.AssertExpectations(t)
		}
	}
}
