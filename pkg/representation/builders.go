package representation

import (
	"time"

	"github.com/google/uuid"

	"github.com/unicef/hope-sub007/pkg/models"
)

// Each Apply function lists the mutable business columns of its type. The
// builders and the sync driver both go through them; nothing is cloned
// reflectively, so a new column has to be added here.

func newID() string {
	return uuid.NewString()
}

func buildHousehold(orig *models.Household, programID string) *models.Household {
	rep := &models.Household{
		ID:        newID(),
		UnicefID:  orig.UnicefID,
		CreatedAt: time.Now().UTC(),
		Lineage:   models.RepresentationOf(&orig.Lineage, orig.ID, orig.UnicefID, programID),
	}
	ApplyHousehold(orig, rep)
	return rep
}

// ApplyHousehold copies the mutable columns of orig onto rep. The head of
// household is a relationship and is resolved separately.
func ApplyHousehold(orig, rep *models.Household) {
	rep.BusinessAreaID = orig.BusinessAreaID
	rep.RegistrationDataImportID = orig.RegistrationDataImportID
	rep.Size = orig.Size
	rep.Address = orig.Address
	rep.Village = orig.Village
	rep.ZipCode = orig.ZipCode
	rep.Country = orig.Country
	rep.CountryOrigin = orig.CountryOrigin
	rep.Admin1 = orig.Admin1
	rep.Admin2 = orig.Admin2
	rep.Admin3 = orig.Admin3
	rep.Admin4 = orig.Admin4
	rep.ResidenceStatus = orig.ResidenceStatus
	rep.CollectIndividualData = orig.CollectIndividualData
	rep.Consent = orig.Consent
	rep.ConsentSharing = cloneJSON(orig.ConsentSharing)
	rep.FemaleAgeGroup0To5 = orig.FemaleAgeGroup0To5
	rep.FemaleAgeGroup6To11 = orig.FemaleAgeGroup6To11
	rep.FemaleAgeGroup12To17 = orig.FemaleAgeGroup12To17
	rep.FemaleAgeGroup18To59 = orig.FemaleAgeGroup18To59
	rep.FemaleAgeGroup60 = orig.FemaleAgeGroup60
	rep.MaleAgeGroup0To5 = orig.MaleAgeGroup0To5
	rep.MaleAgeGroup6To11 = orig.MaleAgeGroup6To11
	rep.MaleAgeGroup12To17 = orig.MaleAgeGroup12To17
	rep.MaleAgeGroup18To59 = orig.MaleAgeGroup18To59
	rep.MaleAgeGroup60 = orig.MaleAgeGroup60
	rep.ChildrenCount = orig.ChildrenCount
	rep.PregnantCount = orig.PregnantCount
	rep.Returnee = orig.Returnee
	rep.FlexFields = cloneJSON(orig.FlexFields)
	rep.Withdrawn = orig.Withdrawn
	rep.WithdrawnDate = orig.WithdrawnDate
	rep.FirstRegistrationDate = orig.FirstRegistrationDate
	rep.LastRegistrationDate = orig.LastRegistrationDate
}

func buildIndividual(orig *models.Individual, programID string, householdID *string) *models.Individual {
	rep := &models.Individual{
		ID:          newID(),
		UnicefID:    orig.UnicefID,
		HouseholdID: householdID,
		CreatedAt:   time.Now().UTC(),
		Lineage:     models.RepresentationOf(&orig.Lineage, orig.ID, orig.UnicefID, programID),
	}
	ApplyIndividual(orig, rep)
	return rep
}

// ApplyIndividual copies the mutable columns of orig onto rep. The household
// is a relationship and is resolved separately.
func ApplyIndividual(orig, rep *models.Individual) {
	rep.BusinessAreaID = orig.BusinessAreaID
	rep.RegistrationDataImportID = orig.RegistrationDataImportID
	rep.FullName = orig.FullName
	rep.GivenName = orig.GivenName
	rep.MiddleName = orig.MiddleName
	rep.FamilyName = orig.FamilyName
	rep.Sex = orig.Sex
	rep.BirthDate = orig.BirthDate
	rep.EstimatedBirthDate = orig.EstimatedBirthDate
	rep.Relationship = orig.Relationship
	rep.MaritalStatus = orig.MaritalStatus
	rep.PhoneNo = orig.PhoneNo
	rep.PhoneNoAlternative = orig.PhoneNoAlternative
	rep.Email = orig.Email
	rep.Disability = orig.Disability
	rep.WorkStatus = orig.WorkStatus
	rep.PregnantStatus = orig.PregnantStatus
	rep.FlexFields = cloneJSON(orig.FlexFields)
	rep.Withdrawn = orig.Withdrawn
	rep.WithdrawnDate = orig.WithdrawnDate
	rep.Duplicate = orig.Duplicate
	rep.DeduplicationGoldenStatus = orig.DeduplicationGoldenStatus
	rep.SanctionListPossibleMatch = orig.SanctionListPossibleMatch
	rep.SanctionListConfirmedMatch = orig.SanctionListConfirmedMatch
	rep.FirstRegistrationDate = orig.FirstRegistrationDate
	rep.LastRegistrationDate = orig.LastRegistrationDate
}

func buildRole(orig *models.IndividualRoleInHousehold, programID, householdID, individualID string) *models.IndividualRoleInHousehold {
	rep := &models.IndividualRoleInHousehold{
		ID:           newID(),
		HouseholdID:  householdID,
		IndividualID: individualID,
		CreatedAt:    time.Now().UTC(),
		Lineage:      models.RepresentationOf(&orig.Lineage, orig.ID, "", programID),
	}
	ApplyRole(orig, rep)
	return rep
}

func ApplyRole(orig, rep *models.IndividualRoleInHousehold) {
	rep.Role = orig.Role
}

func buildDocument(orig *models.Document, programID, individualID string) *models.Document {
	rep := &models.Document{
		ID:           newID(),
		IndividualID: individualID,
		CreatedAt:    time.Now().UTC(),
		Lineage:      models.RepresentationOf(&orig.Lineage, orig.ID, "", programID),
	}
	ApplyDocument(orig, rep)
	return rep
}

func ApplyDocument(orig, rep *models.Document) {
	rep.DocumentNumber = orig.DocumentNumber
	rep.TypeKey = orig.TypeKey
	rep.Country = orig.Country
	rep.Status = orig.Status
	rep.Photo = orig.Photo
	rep.Cleared = orig.Cleared
	rep.IssuanceDate = orig.IssuanceDate
	rep.ExpiryDate = orig.ExpiryDate
}

func buildIdentity(orig *models.IndividualIdentity, programID, individualID string) *models.IndividualIdentity {
	rep := &models.IndividualIdentity{
		ID:           newID(),
		IndividualID: individualID,
		CreatedAt:    time.Now().UTC(),
		Lineage:      models.RepresentationOf(&orig.Lineage, orig.ID, "", programID),
	}
	ApplyIdentity(orig, rep)
	return rep
}

func ApplyIdentity(orig, rep *models.IndividualIdentity) {
	rep.Number = orig.Number
	rep.Partner = orig.Partner
	rep.Country = orig.Country
}

func buildBankAccount(orig *models.BankAccountInfo, programID, individualID string) *models.BankAccountInfo {
	rep := &models.BankAccountInfo{
		ID:           newID(),
		IndividualID: individualID,
		CreatedAt:    time.Now().UTC(),
		Lineage:      models.RepresentationOf(&orig.Lineage, orig.ID, "", programID),
	}
	ApplyBankAccount(orig, rep)
	return rep
}

func ApplyBankAccount(orig, rep *models.BankAccountInfo) {
	rep.BankName = orig.BankName
	rep.BankAccountNumber = orig.BankAccountNumber
	rep.BankBranchName = orig.BankBranchName
	rep.AccountHolderName = orig.AccountHolderName
	rep.DebitCardNumber = orig.DebitCardNumber
}

func cloneJSON(raw models.JSON) models.JSON {
	if raw == nil {
		return nil
	}
	return append(models.JSON{}, raw...)
}
