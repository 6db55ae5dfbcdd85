package cli

var FirestoreIndexConfig = firestoreIndexConfig
