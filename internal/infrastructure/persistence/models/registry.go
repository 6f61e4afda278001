package models

// All returns every persistence model, in dependency order, for AutoMigrate
// in tests and local development.
func All() []any {
	return []any{
		&UserModel{},
		&CategoryModel{},
		&SubCategoryModel{},
		&ProductModel{},
		&ProductViewModel{},
		&OrderModel{},
		&DisputeModel{},
		&PaymentAddressModel{},
		&EscrowPaymentModel{},
		&PaymentWebhookModel{},
		&VendorApplicationModel{},
		&ConversationModel{},
		&MessageModel{},
		&NotificationModel{},
	}
}
