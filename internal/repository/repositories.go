package repository

import "go.mongodb.org/mongo-driver/mongo"

// Repositories bundles every store the services depend on together with the
// Transactor that makes calls across them atomic.
type Repositories struct {
	Users          UserRepository
	Wallets        WalletRepository
	Plans          PlanRepository
	Investments    InvestmentRepository
	ROIRecords     ROIRecordRepository
	Referrals      ReferralRepository
	Transactions   TransactionRepository
	Withdrawals    WithdrawalRepository
	Transfers      TransferRepository
	Settings       SettingRepository
	SupportTickets SupportTicketRepository
	Admins         AdminRepository
	Logs           LogRepository
	Transactor     Transactor
}

func NewMongoRepositories(client *mongo.Client, dbName string) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(client, dbName, UsersCollection),
		Wallets:        NewWalletRepository(client, dbName, WalletsCollection),
		Plans:          NewPlanRepository(client, dbName, PlansCollection),
		Investments:    NewInvestmentRepository(client, dbName, InvestmentsCollection),
		ROIRecords:     NewROIRecordRepository(client, dbName, ROIRecordsCollection),
		Referrals:      NewReferralRepository(client, dbName, ReferralsCollection),
		Transactions:   NewTransactionRepository(client, dbName, TransactionsCollection),
		Withdrawals:    NewWithdrawalRepository(client, dbName, WithdrawalsCollection),
		Transfers:      NewTransferRepository(client, dbName, TransfersCollection),
		Settings:       NewSettingRepository(client, dbName, SettingsCollection),
		SupportTickets: NewSupportTicketRepository(client, dbName, SupportTicketsCollection),
		Admins:         NewAdminRepository(client, dbName, AdminsCollection),
		Logs:           NewLogRepository(client, dbName, LogsCollection),
		Transactor:     NewTransactor(client),
	}
}
